package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/GriffinCanCode/termstream/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termstream/internal/shared/id"
	"github.com/GriffinCanCode/termstream/internal/terminal/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const version = "0.1.0"

// Sessions is the part of the session registry the HTTP API drives
type Sessions interface {
	Create(ctx context.Context, cols, rows int) (id.SessionID, error)
	Get(sid id.SessionID) (session.Info, error)
	Snapshot() []session.Info
	Resize(sid id.SessionID, cols, rows int) error
	Write(sid id.SessionID, p []byte) error
	Close(sid id.SessionID) error
}

// Handlers contains HTTP request handlers
type Handlers struct {
	sessions Sessions
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(sessions Sessions, metrics *monitoring.Metrics, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
	}
}

// Register mounts the session routes on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)

	sessions := r.Group("/sessions")
	sessions.POST("", h.CreateSession)
	sessions.GET("", h.ListSessions)
	sessions.GET("/:id", h.GetSession)
	sessions.POST("/:id/resize", h.ResizeSession)
	sessions.POST("/:id/input", h.WriteInput)
	sessions.DELETE("/:id", h.CloseSession)
}

type sizeRequest struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

type inputRequest struct {
	Data string `json:"data"`
}

// HealthCheck returns service health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := gin.H{
		"status":   "healthy",
		"version":  version,
		"time":     time.Now().UTC(),
		"sessions": len(h.sessions.Snapshot()),
	}
	if h.metrics != nil {
		resp["metrics"] = h.metrics.Snapshot()
	}
	c.JSON(http.StatusOK, resp)
}

// CreateSession spawns a new terminal session
func (h *Handlers) CreateSession(c *gin.Context) {
	var req sizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	sid, err := h.sessions.Create(c.Request.Context(), req.Cols, req.Rows)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := gin.H{
		"success":    true,
		"session_id": sid,
	}
	// a short-lived process may already be gone
	if info, err := h.sessions.Get(sid); err == nil {
		resp["session"] = info
	}
	c.JSON(http.StatusCreated, resp)
}

// ListSessions returns every live session, ordered by id
func (h *Handlers) ListSessions(c *gin.Context) {
	infos := h.sessions.Snapshot()
	ids := make([]id.SessionID, len(infos))
	for i, info := range infos {
		ids[i] = info.ID
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"ids":      ids,
		"sessions": infos,
	})
}

// GetSession returns one session's info
func (h *Handlers) GetSession(c *gin.Context) {
	sid, ok := sessionID(c)
	if !ok {
		return
	}

	info, err := h.sessions.Get(sid)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"session": info,
	})
}

// ResizeSession changes a session's window size
func (h *Handlers) ResizeSession(c *gin.Context) {
	sid, ok := sessionID(c)
	if !ok {
		return
	}

	var req sizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	if err := h.sessions.Resize(sid, req.Cols, req.Rows); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"cols":    req.Cols,
		"rows":    req.Rows,
	})
}

// WriteInput sends keystrokes to a session
func (h *Handlers) WriteInput(c *gin.Context) {
	sid, ok := sessionID(c)
	if !ok {
		return
	}

	var req inputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	if err := h.sessions.Write(sid, []byte(req.Data)); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"written": len(req.Data),
	})
}

// CloseSession terminates a session. Unknown ids succeed.
func (h *Handlers) CloseSession(c *gin.Context) {
	sid := id.SessionID(c.Param("id"))
	if err := h.sessions.Close(sid); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
	})
}

// sessionID parses the :id parameter, answering 404 when it cannot name a session
func sessionID(c *gin.Context) (id.SessionID, bool) {
	sid, err := id.ParseSessionID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   session.ErrNotFound.Error(),
		})
		return "", false
	}
	return sid, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   msg,
	})
}

// fail maps registry errors onto status codes
func (h *Handlers) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Session request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}
	_ = c.Error(err)

	resp := gin.H{
		"success": false,
		"error":   err.Error(),
	}
	var spawnErr *session.SpawnError
	if errors.As(err, &spawnErr) {
		resp["reason"] = spawnErr.Reason
	}
	c.JSON(status, resp)
}

// StatusFor returns the HTTP status for a registry error
func StatusFor(err error) int {
	var spawnErr *session.SpawnError
	switch {
	case errors.Is(err, session.ErrInvalidSize):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSessionClosed):
		return http.StatusConflict
	case errors.As(err, &spawnErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
