package notesclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultRequestTimeout = 30 * time.Second

var (
	// ErrNotFound matches API errors reporting a missing or foreign note.
	ErrNotFound = errors.New("notesclient: note not found")
	// ErrUnauthorized matches API errors reporting a rejected credential.
	ErrUnauthorized = errors.New("notesclient: unauthorized")

	errMissingBaseURL     = errors.New("notesclient: base url is required")
	errMissingTokenSource = errors.New("notesclient: token source is required")
)

// TokenSource supplies the bearer credential attached to every request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed credential.
type StaticToken string

// Token returns the credential.
func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// APIError reports a non-2xx response from the notes API.
type APIError struct {
	StatusCode int
	Code       string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("notesclient: api status %d", e.StatusCode)
	}
	return fmt.Sprintf("notesclient: api status %d: %s", e.StatusCode, e.Code)
}

// Is lets errors.Is match ErrNotFound and ErrUnauthorized by status.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	default:
		return false
	}
}

// APIClientConfig configures an APIClient.
type APIClientConfig struct {
	BaseURL    string
	Tokens     TokenSource
	HTTPClient *http.Client
}

// APIClient performs authenticated JSON calls against the notes API.
type APIClient struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

// NewAPIClient validates the configuration and builds a client.
func NewAPIClient(cfg APIClientConfig) (*APIClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errMissingBaseURL
	}
	if cfg.Tokens == nil {
		return nil, errMissingTokenSource
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &APIClient{baseURL: baseURL, tokens: cfg.Tokens, httpClient: httpClient}, nil
}

// ListNotes fetches every note of the authenticated user, newest first.
func (c *APIClient) ListNotes(ctx context.Context) ([]Note, error) {
	var notes []Note
	if err := c.do(ctx, http.MethodGet, "/api/notes", nil, &notes); err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []Note{}
	}
	return notes, nil
}

// CreateNote submits a new note and returns the stored version.
func (c *APIClient) CreateNote(ctx context.Context, draft Draft) (Note, error) {
	var created Note
	if err := c.do(ctx, http.MethodPost, "/api/notes", draft.normalized(), &created); err != nil {
		return Note{}, err
	}
	return created, nil
}

// UpdateNote replaces every editable field of the note and returns the stored version.
func (c *APIClient) UpdateNote(ctx context.Context, noteID string, draft Draft) (Note, error) {
	var updated Note
	if err := c.do(ctx, http.MethodPut, notePath(noteID), draft.normalized(), &updated); err != nil {
		return Note{}, err
	}
	return updated, nil
}

// DeleteNote permanently removes the note.
func (c *APIClient) DeleteNote(ctx context.Context, noteID string) error {
	return c.do(ctx, http.MethodDelete, notePath(noteID), nil, nil)
}

// Summarize asks the server for a summary of content.
func (c *APIClient) Summarize(ctx context.Context, content string) (SummaryResult, error) {
	var result SummaryResult
	payload := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPost, "/api/notes/summarize", payload, &result); err != nil {
		return SummaryResult{}, err
	}
	return result, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body any, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("notesclient: obtain token: %w", err)
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	request.Header.Set("Authorization", "Bearer "+token)
	request.Header.Set("Accept", "application/json")
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		var errorBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(response.Body, 4096)).Decode(&errorBody)
		return &APIError{StatusCode: response.StatusCode, Code: errorBody.Error}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("notesclient: decode %s %s: %w", method, path, err)
	}
	return nil
}

func notePath(noteID string) string {
	return "/api/notes/" + url.PathEscape(noteID)
}
