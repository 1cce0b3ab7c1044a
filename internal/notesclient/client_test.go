package notesclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/notes-search/notes/internal/auth"
	"github.com/notes-search/notes/internal/database"
	"github.com/notes-search/notes/internal/notes"
	"github.com/notes-search/notes/internal/server"
	"github.com/notes-search/notes/internal/summary"
	"github.com/notes-search/notes/internal/users"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type apiHarness struct {
	baseURL string
	issuer  *auth.TokenIssuer
}

func newAPIHarness(t *testing.T) apiHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(filepath.Join(t.TempDir(), "client.db"), zap.NewNop())
	require.NoError(t, err)
	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("client-secret"),
		Issuer:        "notes-auth",
		Audience:      "notes-api",
		TokenTTL:      time.Hour,
	})
	require.NoError(t, err)
	userService, err := users.NewService(users.ServiceConfig{Database: db})
	require.NoError(t, err)

	current := time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)
	notesService, err := notes.NewService(notes.ServiceConfig{
		Database: db,
		Clock: func() time.Time {
			current = current.Add(time.Millisecond)
			return current
		},
		IDProvider: notes.NewUUIDProvider(),
	})
	require.NoError(t, err)

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenValidator: issuer,
		UserResolver:   userService,
		NotesService:   notesService,
		Summarizer:     summary.NewService(summary.ExcerptGenerator{}, nil),
	})
	require.NoError(t, err)

	httpServer := httptest.NewServer(handler)
	t.Cleanup(httpServer.Close)
	return apiHarness{baseURL: httpServer.URL, issuer: issuer}
}

func (h apiHarness) client(t *testing.T, subject string) *APIClient {
	t.Helper()
	token, _, err := h.issuer.IssueToken(context.Background(), auth.TokenClaims{Subject: subject})
	require.NoError(t, err)
	client, err := NewAPIClient(APIClientConfig{BaseURL: h.baseURL + "/", Tokens: StaticToken(token)})
	require.NoError(t, err)
	return client
}

func TestAPIClientRoundTrip(t *testing.T) {
	harness := newAPIHarness(t)
	client := harness.client(t, "alice")
	ctx := context.Background()

	listed, err := client.ListNotes(ctx)
	require.NoError(t, err)
	require.Empty(t, listed)

	created, err := client.CreateNote(ctx, Draft{Title: "n1", Content: "hello", Tags: []string{"a", "b", "a"}})
	require.NoError(t, err)
	require.Equal(t, "alice", created.OwnerID)
	require.Equal(t, []string{"a", "b"}, created.Tags)
	require.Nil(t, created.Summary)

	summaryText := "short"
	updated, err := client.UpdateNote(ctx, created.ID, Draft{Title: "t2", Content: "hello", Tags: []string{"b"}, Summary: &summaryText})
	require.NoError(t, err)
	require.Equal(t, "t2", updated.Title)
	require.Equal(t, "short", *updated.Summary)
	require.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	require.NoError(t, client.DeleteNote(ctx, created.ID))
	require.ErrorIs(t, client.DeleteNote(ctx, created.ID), ErrNotFound)

	result, err := client.Summarize(ctx, "hello world")
	require.NoError(t, err)
	require.True(t, result.Generated)
	require.Equal(t, "Summary of note: hello world...", result.Summary)

	_, err = client.Summarize(ctx, "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Equal(t, "content_required", apiErr.Code)
}

func TestAPIClientOwnershipIsolation(t *testing.T) {
	harness := newAPIHarness(t)
	alice := harness.client(t, "alice")
	bob := harness.client(t, "bob")
	ctx := context.Background()

	note, err := alice.CreateNote(ctx, Draft{Title: "private", Tags: []string{}})
	require.NoError(t, err)

	bobNotes, err := bob.ListNotes(ctx)
	require.NoError(t, err)
	require.Empty(t, bobNotes)

	_, err = bob.UpdateNote(ctx, note.ID, Draft{Title: "mine now"})
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, bob.DeleteNote(ctx, note.ID), ErrNotFound)

	aliceNotes, err := alice.ListNotes(ctx)
	require.NoError(t, err)
	require.Len(t, aliceNotes, 1)
	require.Equal(t, "private", aliceNotes[0].Title)
}

func TestAPIClientReportsUnauthorized(t *testing.T) {
	harness := newAPIHarness(t)
	client, err := NewAPIClient(APIClientConfig{BaseURL: harness.baseURL, Tokens: StaticToken("bogus")})
	require.NoError(t, err)

	_, err = client.ListNotes(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestCacheAgainstServer(t *testing.T) {
	harness := newAPIHarness(t)
	cache, err := NewCache(harness.client(t, "carol"), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, cache.Load(ctx))
	first, err := cache.Create(ctx, Draft{Title: "first", Content: "milk", Tags: []string{"home"}})
	require.NoError(t, err)
	second, err := cache.Create(ctx, Draft{Title: "second", Content: "deploy", Tags: []string{"work"}})
	require.NoError(t, err)
	require.Equal(t, []string{second.ID, first.ID}, noteIDs(cache.Snapshot().Notes))

	_, err = cache.Update(ctx, first.ID, Draft{Title: "first", Content: "milk and eggs", Tags: []string{"home", "work"}})
	require.NoError(t, err)

	require.NoError(t, cache.Load(ctx))
	require.Equal(t, []string{first.ID, second.ID}, noteIDs(cache.Snapshot().Notes))
	require.Equal(t, []string{"home", "work"}, cache.TagIndex())

	cache.SetSelectedTags([]string{"work"})
	cache.SetSearchQuery("EGGS")
	require.Equal(t, []string{first.ID}, noteIDs(cache.FilteredNotes()))
}

func TestNewAPIClientValidatesConfig(t *testing.T) {
	_, err := NewAPIClient(APIClientConfig{Tokens: StaticToken("x")})
	require.ErrorIs(t, err, errMissingBaseURL)
	_, err = NewAPIClient(APIClientConfig{BaseURL: "http://localhost"})
	require.ErrorIs(t, err, errMissingTokenSource)
}
