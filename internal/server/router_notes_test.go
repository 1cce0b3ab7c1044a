package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/notes-search/notes/internal/notes"
	"github.com/notes-search/notes/internal/summary"
	"go.uber.org/zap"
)

func newHandlerTestContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	context, _ := gin.CreateTestContext(recorder)
	context.Set(userIDContextKey, "user-1")
	request := httptest.NewRequest(method, target, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	context.Request = request
	return context, recorder
}

func TestHandleCreateNoteRejectsBlankTitle(testContext *testing.T) {
	context, recorder := newHandlerTestContext(http.MethodPost, "/api/notes", `{"title":"   ","content":"body","tags":[]}`)
	handler := &httpHandler{notesService: &notes.Service{}, logger: zap.NewNop()}

	handler.handleCreateNote(context)

	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected bad request status, got %d", recorder.Code)
	}
	expected := `{"error":"invalid_note"}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestHandleCreateNoteRejectsMalformedBody(testContext *testing.T) {
	context, recorder := newHandlerTestContext(http.MethodPost, "/api/notes", `{"title":`)
	handler := &httpHandler{notesService: &notes.Service{}, logger: zap.NewNop()}

	handler.handleCreateNote(context)

	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected bad request status, got %d", recorder.Code)
	}
	expected := `{"error":"invalid_request"}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestHandleListNotesIncludesServiceErrorCode(testContext *testing.T) {
	context, recorder := newHandlerTestContext(http.MethodGet, "/api/notes", "")
	handler := &httpHandler{notesService: &notes.Service{}, logger: zap.NewNop()}

	handler.handleListNotes(context)

	if recorder.Code != http.StatusInternalServerError {
		testContext.Fatalf("expected internal server error status, got %d", recorder.Code)
	}
	expected := `{"error":"notes.list_notes.missing_database"}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestHandleListNotesRequiresUser(testContext *testing.T) {
	context, recorder := newHandlerTestContext(http.MethodGet, "/api/notes", "")
	context.Set(userIDContextKey, "")
	handler := &httpHandler{notesService: &notes.Service{}, logger: zap.NewNop()}

	handler.handleListNotes(context)

	if recorder.Code != http.StatusUnauthorized {
		testContext.Fatalf("expected unauthorized status, got %d", recorder.Code)
	}
}

func TestHandleSummarizeRequiresContent(testContext *testing.T) {
	for _, body := range []string{`{}`, `{"content":""}`, `{"content":"  "}`, `not-json`} {
		context, recorder := newHandlerTestContext(http.MethodPost, "/api/notes/summarize", body)
		handler := &httpHandler{summarizer: summary.NewService(summary.ExcerptGenerator{}, nil), logger: zap.NewNop()}

		handler.handleSummarize(context)

		if recorder.Code != http.StatusBadRequest {
			testContext.Fatalf("body %s: expected bad request, got %d", body, recorder.Code)
		}
		if recorder.Body.String() != `{"error":"content_required"}` {
			testContext.Fatalf("body %s: unexpected response body %s", body, recorder.Body.String())
		}
	}
}

func TestHandleSummarizeReturnsGeneratedSummary(testContext *testing.T) {
	context, recorder := newHandlerTestContext(http.MethodPost, "/api/notes/summarize", `{"content":"hello world"}`)
	handler := &httpHandler{summarizer: summary.NewService(summary.ExcerptGenerator{}, nil), logger: zap.NewNop()}

	handler.handleSummarize(context)

	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected ok status, got %d", recorder.Code)
	}
	expected := `{"summary":"Summary of note: hello world...","generated":true}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestNewHTTPHandlerRequiresDependencies(testContext *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{}); err != errMissingTokenValidator {
		testContext.Fatalf("expected missing token validator, got %v", err)
	}
	if _, err := NewHTTPHandler(Dependencies{TokenValidator: stubTokenValidator{}}); err != errMissingUserResolver {
		testContext.Fatalf("expected missing user resolver, got %v", err)
	}
	if _, err := NewHTTPHandler(Dependencies{TokenValidator: stubTokenValidator{}, UserResolver: stubUserResolver{}}); err != errMissingNotesService {
		testContext.Fatalf("expected missing notes service, got %v", err)
	}
}
