package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"

	"github.com/autoforgehq/autoforge/internal/app"
)

func newTestServer() *Server {
	return &Server{app: &app.App{Logger: arbor.NewLogger()}}
}

func TestRecoveryMiddleware_ConvertsPanicTo500(t *testing.T) {
	s := newTestServer()
	handler := s.withMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("broken handler")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORSMiddleware_PreflightShortCircuits(t *testing.T) {
	s := newTestServer()
	reached := false
	handler := s.withMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		reached = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/api/workflows/generate", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, reached)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestLoggingMiddleware_CapturesStatusAndSize(t *testing.T) {
	s := newTestServer()
	var captured *responseWriter
	handler := s.loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		captured = w.(*responseWriter)
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"job_id":"j1"}`))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/workflows/generate", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, http.StatusAccepted, captured.statusCode)
	assert.Equal(t, len(`{"job_id":"j1"}`), captured.bytes)
}

func TestConditionalMiddleware_BypassesChainForWebsocket(t *testing.T) {
	s := newTestServer()
	var sawWrapped bool
	handler := s.withConditionalMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, sawWrapped = w.(*responseWriter)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/ws", nil))

	// The /ws path must receive the raw writer so the upgrade can hijack.
	assert.False(t, sawWrapped)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
