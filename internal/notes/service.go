package notes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingUserID     = errors.New("user identifier is required")
	errMissingNoteID     = errors.New("note identifier is required")
	noOpLogger           = zap.NewNop()
)

// ownerScope is the compound predicate applied to every single-note statement.
const ownerScope = "note_id = ? AND user_id = ?"

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew  = "notes.service.new"
	opListNotes   = "notes.list_notes"
	opCreateNote  = "notes.create_note"
	opUpdateNote  = "notes.update_note"
	opDeleteNote  = "notes.delete_note"
	reasonMissing = "not_found"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

type IDProvider interface {
	NewID() (string, error)
}

// Service persists notes on behalf of a single authenticated owner per call.
// It holds no note state between calls.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// ListNotes returns all notes owned by userID, most recently updated first.
func (s *Service) ListNotes(ctx context.Context, userID UserID) ([]Note, error) {
	if s.db == nil {
		s.logError(opListNotes, "missing_database", errMissingDatabase)
		return nil, newServiceError(opListNotes, "missing_database", errMissingDatabase)
	}
	if userID == "" {
		s.logError(opListNotes, "missing_user_id", errMissingUserID)
		return nil, newServiceError(opListNotes, "missing_user_id", errMissingUserID)
	}

	notes := make([]Note, 0)
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Order("updated_at_ms DESC").
		Order("note_id DESC").
		Find(&notes).Error; err != nil {
		s.logError(opListNotes, "query_failed", err, zap.String("user_id", userID.String()))
		return nil, newServiceError(opListNotes, "query_failed", err)
	}

	return notes, nil
}

// CreateNote inserts a note owned by userID. The owner always comes from the caller identity.
func (s *Service) CreateNote(ctx context.Context, userID UserID, content NoteContent) (Note, error) {
	if s.db == nil {
		s.logError(opCreateNote, "missing_database", errMissingDatabase)
		return Note{}, newServiceError(opCreateNote, "missing_database", errMissingDatabase)
	}
	if s.idProvider == nil {
		s.logError(opCreateNote, "missing_id_provider", errMissingIDProvider)
		return Note{}, newServiceError(opCreateNote, "missing_id_provider", errMissingIDProvider)
	}
	if userID == "" {
		s.logError(opCreateNote, "missing_user_id", errMissingUserID)
		return Note{}, newServiceError(opCreateNote, "missing_user_id", errMissingUserID)
	}
	if content.Title() == "" {
		return Note{}, newServiceError(opCreateNote, "invalid_content", ErrInvalidNoteContent)
	}

	noteID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateNote, "id_generation_failed", err, zap.String("user_id", userID.String()))
		return Note{}, newServiceError(opCreateNote, "id_generation_failed", err)
	}
	tagsJSON, err := encodeTags(content.Tags())
	if err != nil {
		s.logError(opCreateNote, "encode_tags_failed", err, zap.String("user_id", userID.String()))
		return Note{}, newServiceError(opCreateNote, "encode_tags_failed", err)
	}

	now := s.clock().UTC().UnixMilli()
	note := Note{
		NoteID:          noteID,
		UserID:          userID.String(),
		Title:           content.Title(),
		Content:         content.Content(),
		TagsJSON:        tagsJSON,
		Summary:         content.Summary(),
		CreatedAtMillis: now,
		UpdatedAtMillis: now,
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&note).Error; err != nil {
			s.logError(opCreateNote, "note_insert_failed", err,
				zap.String("user_id", userID.String()),
				zap.String("note_id", noteID))
			return newServiceError(opCreateNote, "note_insert_failed", err)
		}
		return s.recordChange(tx, opCreateNote, OperationTypeCreate, &note)
	})
	if txErr != nil {
		return Note{}, txErr
	}

	return note, nil
}

// UpdateNote replaces title, content, tags and summary of the note matching both
// noteID and userID. A note owned by someone else is reported as ErrNoteNotFound.
func (s *Service) UpdateNote(ctx context.Context, userID UserID, noteID NoteID, content NoteContent) (Note, error) {
	if err := s.checkScope(opUpdateNote, userID, noteID); err != nil {
		return Note{}, err
	}
	if content.Title() == "" {
		return Note{}, newServiceError(opUpdateNote, "invalid_content", ErrInvalidNoteContent)
	}

	tagsJSON, err := encodeTags(content.Tags())
	if err != nil {
		s.logError(opUpdateNote, "encode_tags_failed", err, zap.String("user_id", userID.String()))
		return Note{}, newServiceError(opUpdateNote, "encode_tags_failed", err)
	}

	var summary any
	if content.Summary() != nil {
		summary = *content.Summary()
	}

	var updated Note
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Note{}).
			Where(ownerScope, noteID.String(), userID.String()).
			Updates(map[string]any{
				"title":         content.Title(),
				"content":       content.Content(),
				"tags_json":     tagsJSON,
				"summary":       summary,
				"updated_at_ms": s.clock().UTC().UnixMilli(),
			})
		if result.Error != nil {
			s.logError(opUpdateNote, "note_update_failed", result.Error,
				zap.String("user_id", userID.String()),
				zap.String("note_id", noteID.String()))
			return newServiceError(opUpdateNote, "note_update_failed", result.Error)
		}
		if result.RowsAffected == 0 {
			return newServiceError(opUpdateNote, reasonMissing, ErrNoteNotFound)
		}

		if err := tx.Where(ownerScope, noteID.String(), userID.String()).Take(&updated).Error; err != nil {
			s.logError(opUpdateNote, "note_select_failed", err,
				zap.String("user_id", userID.String()),
				zap.String("note_id", noteID.String()))
			return newServiceError(opUpdateNote, "note_select_failed", err)
		}
		return s.recordChange(tx, opUpdateNote, OperationTypeUpdate, &updated)
	})
	if txErr != nil {
		return Note{}, txErr
	}

	return updated, nil
}

// DeleteNote permanently removes the note matching both noteID and userID.
// Deleting an absent or foreign note yields ErrNoteNotFound on every call.
func (s *Service) DeleteNote(ctx context.Context, userID UserID, noteID NoteID) error {
	if err := s.checkScope(opDeleteNote, userID, noteID); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where(ownerScope, noteID.String(), userID.String()).Delete(&Note{})
		if result.Error != nil {
			s.logError(opDeleteNote, "note_delete_failed", result.Error,
				zap.String("user_id", userID.String()),
				zap.String("note_id", noteID.String()))
			return newServiceError(opDeleteNote, "note_delete_failed", result.Error)
		}
		if result.RowsAffected == 0 {
			return newServiceError(opDeleteNote, reasonMissing, ErrNoteNotFound)
		}
		return s.recordChange(tx, opDeleteNote, OperationTypeDelete, &Note{
			NoteID: noteID.String(),
			UserID: userID.String(),
		})
	})
}

func (s *Service) checkScope(operation string, userID UserID, noteID NoteID) error {
	if s.db == nil {
		s.logError(operation, "missing_database", errMissingDatabase)
		return newServiceError(operation, "missing_database", errMissingDatabase)
	}
	if userID == "" {
		s.logError(operation, "missing_user_id", errMissingUserID)
		return newServiceError(operation, "missing_user_id", errMissingUserID)
	}
	if noteID == "" {
		return newServiceError(operation, reasonMissing, fmt.Errorf("%w: %v", ErrNoteNotFound, errMissingNoteID))
	}
	return nil
}

func (s *Service) recordChange(tx *gorm.DB, operation string, opType OperationType, note *Note) error {
	if s.idProvider == nil {
		s.logError(operation, "missing_id_provider", errMissingIDProvider)
		return newServiceError(operation, "missing_id_provider", errMissingIDProvider)
	}
	changeID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(operation, "id_generation_failed", err,
			zap.String("user_id", note.UserID),
			zap.String("note_id", note.NoteID))
		return newServiceError(operation, "id_generation_failed", err)
	}
	payload := "{}"
	if opType != OperationTypeDelete {
		payload, err = snapshotPayload(note)
		if err != nil {
			s.logError(operation, "audit_payload_failed", err,
				zap.String("user_id", note.UserID),
				zap.String("note_id", note.NoteID))
			return newServiceError(operation, "audit_payload_failed", err)
		}
	}
	audit := NoteChange{
		ChangeID:        changeID,
		UserID:          note.UserID,
		NoteID:          note.NoteID,
		AppliedAtMillis: s.clock().UTC().UnixMilli(),
		Operation:       opType,
		PayloadJSON:     payload,
	}
	if err := tx.Create(&audit).Error; err != nil {
		s.logError(operation, "audit_insert_failed", err,
			zap.String("user_id", note.UserID),
			zap.String("note_id", note.NoteID))
		return newServiceError(operation, "audit_insert_failed", err)
	}
	return nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("notes service error", attrs...)
}
