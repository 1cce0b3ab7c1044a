package notesclient

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var errMissingAPI = errors.New("notesclient: api is required")

// NotesAPI is the server surface the cache depends on. *APIClient implements it.
type NotesAPI interface {
	ListNotes(ctx context.Context) ([]Note, error)
	CreateNote(ctx context.Context, draft Draft) (Note, error)
	UpdateNote(ctx context.Context, noteID string, draft Draft) (Note, error)
	DeleteNote(ctx context.Context, noteID string) error
	Summarize(ctx context.Context, content string) (SummaryResult, error)
}

// Cache mirrors the authenticated user's notes. Mutations round-trip through
// the API first and touch local state only after the server confirms them.
// The lock is never held across a network call.
type Cache struct {
	api    NotesAPI
	logger *zap.Logger
	loads  singleflight.Group

	mu         sync.RWMutex
	state      State
	inFlight   int
	generation uint64
	lastErr    error
}

type loadResult struct {
	notes      []Note
	generation uint64
}

// NewCache builds an empty cache backed by api.
func NewCache(api NotesAPI, logger *zap.Logger) (*Cache, error) {
	if api == nil {
		return nil, errMissingAPI
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{api: api, logger: logger, state: State{Notes: []Note{}}}, nil
}

// Load replaces the held notes with the server's list. Concurrent calls share
// one request; ctx bounds only this caller's wait, never the shared request.
// A list fetched before a confirmed mutation landed is discarded so the
// mutation is not undone locally. Loading stays true while any Load is pending.
func (c *Cache) Load(ctx context.Context) error {
	c.mu.Lock()
	c.inFlight++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()

	shared := context.WithoutCancel(ctx)
	results := c.loads.DoChan("list", func() (any, error) {
		c.mu.RLock()
		generation := c.generation
		c.mu.RUnlock()
		fetched, err := c.api.ListNotes(shared)
		if err != nil {
			return nil, err
		}
		return loadResult{notes: fetched, generation: generation}, nil
	})

	var outcome singleflight.Result
	select {
	case <-ctx.Done():
		c.fail("load notes abandoned", ctx.Err())
		return ctx.Err()
	case outcome = <-results:
	}
	if outcome.Err != nil {
		c.fail("load notes failed", outcome.Err)
		return outcome.Err
	}

	loaded, _ := outcome.Val.(loadResult)
	notes := make([]Note, 0, len(loaded.notes))
	for _, note := range loaded.notes {
		notes = append(notes, note.clone())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = nil
	if loaded.generation != c.generation {
		c.logger.Debug("discarding stale note list",
			zap.Uint64("fetched_generation", loaded.generation),
			zap.Uint64("current_generation", c.generation))
		return nil
	}
	c.state.Notes = notes
	return nil
}

// Create sends draft to the server and, on success, puts the stored note first.
func (c *Cache) Create(ctx context.Context, draft Draft) (Note, error) {
	if err := draft.Validate(); err != nil {
		c.fail("create note rejected", err)
		return Note{}, err
	}
	created, err := c.api.CreateNote(ctx, draft.normalized())
	if err != nil {
		c.fail("create note failed", err)
		return Note{}, err
	}

	c.mu.Lock()
	c.state.Notes = append([]Note{created.clone()}, c.state.Notes...)
	c.generation++
	c.lastErr = nil
	c.mu.Unlock()
	return created, nil
}

// Update replaces the note on the server and, on success, moves the stored
// version to the front.
func (c *Cache) Update(ctx context.Context, noteID string, draft Draft) (Note, error) {
	if err := draft.Validate(); err != nil {
		c.fail("update note rejected", err, zap.String("note_id", noteID))
		return Note{}, err
	}
	updated, err := c.api.UpdateNote(ctx, noteID, draft.normalized())
	if err != nil {
		c.fail("update note failed", err, zap.String("note_id", noteID))
		return Note{}, err
	}

	c.mu.Lock()
	remaining := withoutNote(c.state.Notes, updated.ID)
	c.state.Notes = append([]Note{updated.clone()}, remaining...)
	c.generation++
	c.lastErr = nil
	c.mu.Unlock()
	return updated, nil
}

// Delete removes the note on the server and then locally.
func (c *Cache) Delete(ctx context.Context, noteID string) error {
	if err := c.api.DeleteNote(ctx, noteID); err != nil {
		c.fail("delete note failed", err, zap.String("note_id", noteID))
		return err
	}

	c.mu.Lock()
	c.state.Notes = withoutNote(c.state.Notes, noteID)
	c.generation++
	c.lastErr = nil
	c.mu.Unlock()
	return nil
}

// Summarize asks the server for a summary. It does not change held notes.
func (c *Cache) Summarize(ctx context.Context, content string) (SummaryResult, error) {
	result, err := c.api.Summarize(ctx, content)
	if err != nil {
		c.fail("summarize failed", err)
		return SummaryResult{}, err
	}
	if !result.Generated {
		c.logger.Info("summary not generated")
	}
	return result, nil
}

// SetSearchQuery sets the free-text filter.
func (c *Cache) SetSearchQuery(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.SearchQuery = query
}

// ToggleTag adds tag to the selection, or removes it when already selected.
func (c *Cache) ToggleTag(tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for index, selected := range c.state.SelectedTags {
		if selected == tag {
			c.state.SelectedTags = append(append([]string(nil), c.state.SelectedTags[:index]...), c.state.SelectedTags[index+1:]...)
			return
		}
	}
	c.state.SelectedTags = append(append([]string(nil), c.state.SelectedTags...), tag)
}

// SetSelectedTags replaces the tag selection, dropping duplicates.
func (c *Cache) SetSelectedTags(tags []string) {
	selection := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		selection = append(selection, tag)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.SelectedTags = selection
}

// Snapshot returns a deep copy of the current state.
func (c *Cache) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	notes := make([]Note, 0, len(c.state.Notes))
	for _, note := range c.state.Notes {
		notes = append(notes, note.clone())
	}
	return State{
		Notes:        notes,
		SearchQuery:  c.state.SearchQuery,
		SelectedTags: append([]string{}, c.state.SelectedTags...),
	}
}

// TagIndex derives the tag index from the current notes.
func (c *Cache) TagIndex() []string {
	return c.Snapshot().TagIndex()
}

// FilteredNotes derives the filtered view from the current state.
func (c *Cache) FilteredNotes() []Note {
	return c.Snapshot().FilteredNotes()
}

// Loading reports whether a Load is in flight.
func (c *Cache) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inFlight > 0
}

// LastError returns the error of the most recent failed call, or nil after a success.
func (c *Cache) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *Cache) fail(message string, err error, fields ...zap.Field) {
	c.logger.Warn(message, append(fields, zap.Error(err))...)
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func withoutNote(notes []Note, noteID string) []Note {
	remaining := make([]Note, 0, len(notes))
	for _, note := range notes {
		if note.ID != noteID {
			remaining = append(remaining, note)
		}
	}
	return remaining
}
