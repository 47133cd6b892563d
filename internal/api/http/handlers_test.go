package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/termstream/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termstream/internal/shared/id"
	"github.com/GriffinCanCode/termstream/internal/terminal/broadcast"
	"github.com/GriffinCanCode/termstream/internal/terminal/session"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success   bool           `json:"success"`
	Error     string         `json:"error"`
	Reason    string         `json:"reason"`
	SessionID string         `json:"session_id"`
	IDs       []string       `json:"ids"`
	Session   *session.Info  `json:"session"`
	Sessions  []session.Info `json:"sessions"`
}

func setupRouter(sessions Sessions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandlers(sessions, monitoring.NewMetrics(), nil).Register(router)
	return router
}

func newRegistry(t *testing.T, body string) *session.Registry {
	t.Helper()
	cfg := session.DefaultConfig()
	cfg.Args = []string{"-c", body}
	cfg.GracePeriod = 300 * time.Millisecond
	cfg.IdleAfter = 0

	r := session.NewRegistry(cfg, broadcast.New(broadcast.DefaultOptions()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.Shutdown(ctx)
	})
	return r
}

func do(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	reg := newRegistry(t, "read line; sleep 30")
	router := setupRouter(reg)

	w, env := do(t, router, http.MethodPost, "/sessions", `{"cols": 100, "rows": 30}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.True(t, env.Success)
	sid := env.SessionID
	_, err := id.ParseSessionID(sid)
	require.NoError(t, err)
	require.NotNil(t, env.Session)
	assert.Equal(t, 100, env.Session.Cols)
	assert.Equal(t, 30, env.Session.Rows)

	w, env = do(t, router, http.MethodGet, "/sessions", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{sid}, env.IDs)
	require.Len(t, env.Sessions, 1)
	assert.Equal(t, session.StatusActive, env.Sessions[0].Status)

	w, env = do(t, router, http.MethodPost, "/sessions/"+sid+"/resize", `{"cols": 120, "rows": 40}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = do(t, router, http.MethodGet, "/sessions/"+sid, "")
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, env.Session)
	assert.Equal(t, 120, env.Session.Cols)
	assert.Equal(t, 40, env.Session.Rows)

	w, _ = do(t, router, http.MethodPost, "/sessions/"+sid+"/input", `{"data": "hello\n"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = do(t, router, http.MethodDelete, "/sessions/"+sid, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	w, _ = do(t, router, http.MethodGet, "/sessions/"+sid, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = do(t, router, http.MethodDelete, "/sessions/"+sid, "")
	assert.Equal(t, http.StatusOK, w.Code, "closing twice is a no-op")
	assert.True(t, env.Success)
}

func TestCreateSessionRejectsInvalidSize(t *testing.T) {
	router := setupRouter(newRegistry(t, "sleep 30"))

	tests := []struct {
		name string
		body string
	}{
		{"zero cols", `{"cols": 0, "rows": 24}`},
		{"negative rows", `{"cols": 80, "rows": -1}`},
		{"missing fields", `{}`},
		{"oversized", `{"cols": 70000, "rows": 24}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := do(t, router, http.MethodPost, "/sessions", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, env.Success)
			assert.Contains(t, env.Error, session.ErrInvalidSize.Error())
		})
	}
}

func TestCreateSessionMalformedBody(t *testing.T) {
	router := setupRouter(newRegistry(t, "sleep 30"))

	w, env := do(t, router, http.MethodPost, "/sessions", `{"cols": "wide"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Error, "Invalid request")
}

func TestCreateSessionSpawnFailure(t *testing.T) {
	cfg := session.DefaultConfig()
	cfg.Shell = "/nonexistent/shell"
	reg := session.NewRegistry(cfg, broadcast.New(broadcast.DefaultOptions()))
	router := setupRouter(reg)

	w, env := do(t, router, http.MethodPost, "/sessions", `{"cols": 80, "rows": 24}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, session.ReasonStart, env.Reason)
}

func TestUnknownSessionRoutes(t *testing.T) {
	router := setupRouter(newRegistry(t, "sleep 30"))
	unknown := string(id.NewSessionID())

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"get unknown", http.MethodGet, "/sessions/" + unknown, ""},
		{"get malformed", http.MethodGet, "/sessions/not-an-id", ""},
		{"resize unknown", http.MethodPost, "/sessions/" + unknown + "/resize", `{"cols": 80, "rows": 24}`},
		{"input unknown", http.MethodPost, "/sessions/" + unknown + "/input", `{"data": "x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := do(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.Equal(t, session.ErrNotFound.Error(), env.Error)
		})
	}
}

func TestHealthCheck(t *testing.T) {
	router := setupRouter(newRegistry(t, "sleep 30"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, version, body["version"])
	assert.Contains(t, body, "metrics")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid size", fmt.Errorf("%w: 0x0", session.ErrInvalidSize), http.StatusBadRequest},
		{"not found", session.ErrNotFound, http.StatusNotFound},
		{"closed", session.ErrSessionClosed, http.StatusConflict},
		{"spawn", &session.SpawnError{Reason: session.ReasonCircuitOpen}, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}
