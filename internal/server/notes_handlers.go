package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/notes-search/notes/internal/notes"
	"github.com/notes-search/notes/internal/summary"
	"go.uber.org/zap"
)

const (
	errorCodeInvalidRequest  = "invalid_request"
	errorCodeInvalidNote     = "invalid_note"
	errorCodeNotFound        = "not_found"
	errorCodeContentRequired = "content_required"
	errorCodeInternal        = "internal_error"
	deleteConfirmation       = "Note deleted successfully"
)

// notePayload is the body accepted by create and update. Any ownerId sent by
// the client is not decoded: the owner always comes from the credential.
type notePayload struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
	Summary *string  `json:"summary"`
}

func (p notePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.By(notBlank)),
	)
}

type summarizePayload struct {
	Content string `json:"content"`
}

type summarizeResponse struct {
	Summary   string `json:"summary"`
	Generated bool   `json:"generated"`
}

type noteResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	Summary   *string   `json:"summary,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newNoteResponse(note notes.Note) (noteResponse, error) {
	tags, err := note.Tags()
	if err != nil {
		return noteResponse{}, err
	}
	return noteResponse{
		ID:        note.NoteID,
		OwnerID:   note.UserID,
		Title:     note.Title,
		Content:   note.Content,
		Tags:      tags,
		Summary:   note.Summary,
		CreatedAt: note.CreatedAt(),
		UpdatedAt: note.UpdatedAt(),
	}, nil
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	stored, err := h.notesService.ListNotes(c.Request.Context(), userID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response := make([]noteResponse, 0, len(stored))
	for _, note := range stored {
		payload, err := newNoteResponse(note)
		if err != nil {
			h.logger.Error("failed to encode note", zap.String("note_id", note.NoteID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": errorCodeInternal})
			return
		}
		response = append(response, payload)
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleCreateNote(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	content, ok := h.bindNoteContent(c)
	if !ok {
		return
	}

	created, err := h.notesService.CreateNote(c.Request.Context(), userID, content)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.writeNote(c, http.StatusCreated, created)
}

func (h *httpHandler) handleUpdateNote(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	noteID, err := notes.NewNoteID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errorCodeNotFound})
		return
	}
	content, ok := h.bindNoteContent(c)
	if !ok {
		return
	}

	updated, err := h.notesService.UpdateNote(c.Request.Context(), userID, noteID, content)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.writeNote(c, http.StatusOK, updated)
}

func (h *httpHandler) handleDeleteNote(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	noteID, err := notes.NewNoteID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errorCodeNotFound})
		return
	}

	if err := h.notesService.DeleteNote(c.Request.Context(), userID, noteID); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": deleteConfirmation})
}

func (h *httpHandler) handleSummarize(c *gin.Context) {
	if _, ok := h.requireUserID(c); !ok {
		return
	}
	var request summarizePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorCodeContentRequired})
		return
	}

	result, err := h.summarizer.Summarize(c.Request.Context(), request.Content)
	if err != nil {
		if errors.Is(err, summary.ErrEmptyContent) {
			c.JSON(http.StatusBadRequest, gin.H{"error": errorCodeContentRequired})
			return
		}
		h.logger.Error("summarize failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorCodeInternal})
		return
	}
	c.JSON(http.StatusOK, summarizeResponse{Summary: result.Summary, Generated: result.Generated})
}

func (h *httpHandler) requireUserID(c *gin.Context) (notes.UserID, bool) {
	userID, err := notes.NewUserID(c.GetString(userIDContextKey))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return userID, true
}

func (h *httpHandler) bindNoteContent(c *gin.Context) (notes.NoteContent, bool) {
	var request notePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorCodeInvalidRequest})
		return notes.NoteContent{}, false
	}
	if err := request.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorCodeInvalidNote})
		return notes.NoteContent{}, false
	}
	content, err := notes.NewNoteContent(request.Title, request.Content, request.Tags, request.Summary)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorCodeInvalidNote})
		return notes.NoteContent{}, false
	}
	return content, true
}

func (h *httpHandler) writeNote(c *gin.Context, status int, note notes.Note) {
	payload, err := newNoteResponse(note)
	if err != nil {
		h.logger.Error("failed to encode note", zap.String("note_id", note.NoteID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorCodeInternal})
		return
	}
	c.JSON(status, payload)
}

func (h *httpHandler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, notes.ErrNoteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errorCodeNotFound})
		return
	case errors.Is(err, notes.ErrInvalidNoteContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": errorCodeInvalidNote})
		return
	}

	code := errorCodeInternal
	var serviceErr *notes.ServiceError
	if errors.As(err, &serviceErr) {
		code = serviceErr.Code()
	}
	h.logger.Error("notes request failed", zap.String("code", code), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": code})
}

func notBlank(value interface{}) error {
	text, _ := value.(string)
	if strings.TrimSpace(text) == "" {
		return validation.ErrRequired
	}
	return nil
}
