package notes

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// OperationType enumerates the mutations recorded in the audit trail.
type OperationType string

const (
	// OperationTypeCreate records a newly inserted note.
	OperationTypeCreate OperationType = "create"
	// OperationTypeUpdate records a full field replace.
	OperationTypeUpdate OperationType = "update"
	// OperationTypeDelete records a permanent removal.
	OperationTypeDelete OperationType = "delete"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidNoteID indicates that a note identifier is empty or exceeds storage bounds.
	ErrInvalidNoteID = errors.New("notes: invalid note id")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("notes: invalid user id")
	// ErrInvalidNoteContent indicates that the submitted fields cannot be stored.
	ErrInvalidNoteContent = errors.New("notes: invalid note content")
	// ErrNoteNotFound is returned when no note matches both the id and the owner.
	ErrNoteNotFound = errors.New("notes: note not found")
)

// NoteID represents a validated note identifier.
type NoteID string

// NewNoteID validates raw input and returns a NoteID.
func NewNoteID(rawInput string) (NoteID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidNoteID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidNoteID, maxIdentifierLength)
	}
	return NoteID(trimmed), nil
}

// String returns the underlying string identifier.
func (id NoteID) String() string {
	return string(id)
}

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// NoteContent carries the mutable fields of a note after normalization.
type NoteContent struct {
	title   string
	content string
	tags    []string
	summary *string
}

// NewNoteContent trims the title, normalizes tags and rejects an empty title.
func NewNoteContent(title, content string, tags []string, summary *string) (NoteContent, error) {
	trimmedTitle := strings.TrimSpace(title)
	if trimmedTitle == "" {
		return NoteContent{}, fmt.Errorf("%w: title is required", ErrInvalidNoteContent)
	}
	var summaryCopy *string
	if summary != nil {
		value := *summary
		summaryCopy = &value
	}
	return NoteContent{
		title:   trimmedTitle,
		content: content,
		tags:    NormalizeTags(tags),
		summary: summaryCopy,
	}, nil
}

// Title returns the trimmed title.
func (c NoteContent) Title() string { return c.title }

// Content returns the note body.
func (c NoteContent) Content() string { return c.content }

// Tags returns a copy of the normalized tag list.
func (c NoteContent) Tags() []string { return append([]string(nil), c.tags...) }

// Summary returns the optional summary.
func (c NoteContent) Summary() *string { return c.summary }

// NormalizeTags trims every tag, drops empty ones and removes duplicates,
// keeping the first occurrence order.
func NormalizeTags(tags []string) []string {
	normalized := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	return normalized
}

// Note models the persisted note row. Every query against it is scoped by user_id.
type Note struct {
	NoteID          string  `gorm:"column:note_id;primaryKey;size:190;not null"`
	UserID          string  `gorm:"column:user_id;size:190;not null;index:idx_notes_user_updated,priority:1"`
	Title           string  `gorm:"column:title;type:text;not null"`
	Content         string  `gorm:"column:content;type:text;not null;default:''"`
	TagsJSON        string  `gorm:"column:tags_json;type:text;not null;default:'[]'"`
	Summary         *string `gorm:"column:summary;type:text"`
	CreatedAtMillis int64   `gorm:"column:created_at_ms;not null"`
	UpdatedAtMillis int64   `gorm:"column:updated_at_ms;not null;index:idx_notes_user_updated,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Note) TableName() string {
	return "notes"
}

// Tags decodes the stored tag list.
func (n Note) Tags() ([]string, error) {
	if strings.TrimSpace(n.TagsJSON) == "" {
		return []string{}, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(n.TagsJSON), &tags); err != nil {
		return nil, fmt.Errorf("notes: decode tags for %s: %w", n.NoteID, err)
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

// CreatedAt converts the stored creation time.
func (n Note) CreatedAt() time.Time {
	return time.UnixMilli(n.CreatedAtMillis).UTC()
}

// UpdatedAt converts the stored modification time.
func (n Note) UpdatedAt() time.Time {
	return time.UnixMilli(n.UpdatedAtMillis).UTC()
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// NoteChange captures an append-only audit trail for note modifications.
type NoteChange struct {
	ChangeID        string        `gorm:"column:change_id;primaryKey;size:190;not null"`
	UserID          string        `gorm:"column:user_id;size:190;not null;index:idx_changes_user_time,priority:1"`
	NoteID          string        `gorm:"column:note_id;size:190;not null"`
	AppliedAtMillis int64         `gorm:"column:applied_at_ms;not null;index:idx_changes_user_time,priority:2"`
	Operation       OperationType `gorm:"column:op;size:16;not null"`
	PayloadJSON     string        `gorm:"column:payload_json;type:text;not null"`
}

// TableName provides the explicit table binding for GORM.
func (NoteChange) TableName() string {
	return "note_changes"
}

type changePayload struct {
	Title   string   `json:"title,omitempty"`
	Content string   `json:"content,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Summary *string  `json:"summary,omitempty"`
}

func snapshotPayload(note *Note) (string, error) {
	if note == nil {
		return "{}", nil
	}
	tags, err := note.Tags()
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(changePayload{
		Title:   note.Title,
		Content: note.Content,
		Tags:    tags,
		Summary: note.Summary,
	})
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
