package notesclient

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrInvalidDraft is returned when a draft cannot be sent to the server.
var ErrInvalidDraft = errors.New("notesclient: invalid draft")

// Note mirrors the server representation of a note.
type Note struct {
	ID        string    `json:"id" yaml:"id"`
	OwnerID   string    `json:"ownerId" yaml:"ownerId"`
	Title     string    `json:"title" yaml:"title"`
	Content   string    `json:"content" yaml:"content"`
	Tags      []string  `json:"tags" yaml:"tags"`
	Summary   *string   `json:"summary,omitempty" yaml:"summary,omitempty"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// HasTag reports whether the note carries tag exactly.
func (n Note) HasTag(tag string) bool {
	for _, candidate := range n.Tags {
		if candidate == tag {
			return true
		}
	}
	return false
}

func (n Note) clone() Note {
	copied := n
	copied.Tags = append([]string(nil), n.Tags...)
	if n.Summary != nil {
		summary := *n.Summary
		copied.Summary = &summary
	}
	return copied
}

// Draft holds the editable fields submitted on create and update.
type Draft struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
	Summary *string  `json:"summary,omitempty"`
}

// Validate requires a non-blank title.
func (d Draft) Validate() error {
	err := validation.ValidateStruct(&d,
		validation.Field(&d.Title, validation.By(func(value interface{}) error {
			if strings.TrimSpace(value.(string)) == "" {
				return validation.ErrRequired
			}
			return nil
		})),
	)
	if err != nil {
		return errors.Join(ErrInvalidDraft, err)
	}
	return nil
}

func (d Draft) normalized() Draft {
	d.Title = strings.TrimSpace(d.Title)
	if d.Tags == nil {
		d.Tags = []string{}
	}
	return d
}

// SummaryResult is the answer of the summarize endpoint. Generated is false
// when the server could not produce a summary and Summary is blank.
type SummaryResult struct {
	Summary   string `json:"summary"`
	Generated bool   `json:"generated"`
}
