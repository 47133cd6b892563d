package ws

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/GriffinCanCode/termstream/internal/infrastructure/logging"
	"github.com/GriffinCanCode/termstream/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termstream/internal/shared/id"
	"github.com/GriffinCanCode/termstream/internal/terminal/broadcast"
	"github.com/GriffinCanCode/termstream/internal/terminal/session"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Sessions is the part of the session registry a stream needs
type Sessions interface {
	Subscribe(sid id.SessionID) (*broadcast.Subscription, error)
	Unsubscribe(sub *broadcast.Subscription)
	Done(sid id.SessionID) (<-chan session.Info, error)
	Write(sid id.SessionID, p []byte) error
	Resize(sid id.SessionID, cols, rows int) error
}

// Config controls stream keepalive and limits
type Config struct {
	WriteTimeout time.Duration
	// PingInterval is how often the server pings. A client that answers
	// none of two consecutive pings is dropped. Zero disables pings.
	PingInterval   time.Duration
	AllowedOrigins []string
	MaxFrameSize   int64
}

// DefaultConfig returns default stream configuration
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		MaxFrameSize: 64 << 10,
	}
}

// Handler manages WebSocket stream connections
type Handler struct {
	sessions Sessions
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	cfg      Config
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler
func NewHandler(sessions Sessions, metrics *monitoring.Metrics, cfg Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = DefaultConfig().MaxFrameSize
	}
	return &Handler{
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(cfg.AllowedOrigins),
		},
	}
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// HandleStream upgrades the connection and forwards the session's decoded
// output until the session ends or the client leaves. Unknown sessions are
// answered with 404 before any upgrade.
func (h *Handler) HandleStream(c *gin.Context) {
	sid, err := id.ParseSessionID(c.Param("id"))
	if err != nil {
		notFound(c)
		return
	}
	done, err := h.sessions.Done(sid)
	if err != nil {
		notFound(c)
		return
	}
	sub, err := h.sessions.Subscribe(sid)
	if err != nil {
		notFound(c)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.sessions.Unsubscribe(sub)
		h.logger.Warn("WebSocket upgrade failed", zap.String("session_id", sid.String()), zap.Error(err))
		return
	}

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	s := &stream{
		h:      h,
		conn:   conn,
		sid:    sid,
		sub:    sub,
		done:   done,
		logger: logging.Session(h.logger, sid).With(zap.String("subscription", sub.ID)),
		errs:   make(chan ErrorFrame, 8),
	}
	s.logger.Info("Stream opened", zap.String("remote", c.ClientIP()))
	s.run(c.Request.Context())
	s.logger.Info("Stream closed")
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"error":   session.ErrNotFound.Error(),
	})
}

// stream is one client connection. Only writeLoop writes to conn.
type stream struct {
	h      *Handler
	conn   *websocket.Conn
	sid    id.SessionID
	sub    *broadcast.Subscription
	done   <-chan session.Info
	logger *zap.Logger
	errs   chan ErrorFrame
}

func (s *stream) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	messages := make(chan broadcast.Message)
	go s.pump(ctx, messages)
	go s.readLoop(cancel)

	s.writeLoop(ctx, messages)

	cancel()
	s.h.sessions.Unsubscribe(s.sub)
	_ = s.conn.Close()
}

// pump moves messages off the subscription so writeLoop can also select
// on pings. messages is closed when the subscription ends.
func (s *stream) pump(ctx context.Context, messages chan<- broadcast.Message) {
	defer close(messages)
	for {
		msg, err := s.sub.Next(ctx)
		if err != nil {
			return
		}
		select {
		case messages <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (s *stream) writeLoop(ctx context.Context, messages <-chan broadcast.Message) {
	var ping <-chan time.Time
	if s.h.cfg.PingInterval > 0 {
		ticker := time.NewTicker(s.h.cfg.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() == nil {
					s.finish()
				}
				return
			}
			if msg.Dropped > 0 {
				s.logger.Debug("Stream lagging", zap.Int("dropped", msg.Dropped))
			}
			if err := s.send(TypeOutput, outputFrame(msg)); err != nil {
				s.logger.Debug("Stream write failed", zap.Error(err))
				return
			}

		case frame := <-s.errs:
			if err := s.send(TypeError, frame); err != nil {
				return
			}

		case <-ping:
			deadline := time.Now().Add(s.h.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("Stream ping failed", zap.Error(err))
				return
			}
		}
	}
}

// finish reports how the session ended and closes the connection politely.
func (s *stream) finish() {
	timer := time.NewTimer(s.h.cfg.WriteTimeout)
	defer timer.Stop()

	select {
	case info := <-s.done:
		if err := s.send(TypeExit, exitFrame(info)); err != nil {
			return
		}
	case <-timer.C:
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.h.cfg.WriteTimeout))
}

func (s *stream) send(frameType string, v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s frame: %w", frameType, err)
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.h.cfg.WriteTimeout)); err != nil {
		return err
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	s.h.metrics.RecordWSMessage("out", frameType)
	return nil
}

func (s *stream) readLoop(cancel context.CancelFunc) {
	defer cancel()

	s.conn.SetReadLimit(s.h.cfg.MaxFrameSize)
	s.extendReadDeadline()
	s.conn.SetPongHandler(func(string) error {
		s.extendReadDeadline()
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("Stream read ended", zap.Error(err))
			}
			return
		}
		s.extendReadDeadline()

		var frame ClientFrame
		if err := sonic.Unmarshal(data, &frame); err != nil {
			s.h.metrics.RecordWSMessage("in", "malformed")
			s.reject("malformed frame")
			continue
		}

		if err := s.handle(frame); err != nil {
			s.reject(err.Error())
		}
	}
}

func (s *stream) handle(frame ClientFrame) error {
	switch frame.Type {
	case TypeInput:
		s.h.metrics.RecordWSMessage("in", TypeInput)
		return s.h.sessions.Write(s.sid, []byte(frame.Data))
	case TypeResize:
		s.h.metrics.RecordWSMessage("in", TypeResize)
		return s.h.sessions.Resize(s.sid, frame.Cols, frame.Rows)
	default:
		s.h.metrics.RecordWSMessage("in", "unknown")
		return fmt.Errorf("unknown frame type %q", frame.Type)
	}
}

func (s *stream) extendReadDeadline() {
	if s.h.cfg.PingInterval <= 0 {
		return
	}
	_ = s.conn.SetReadDeadline(time.Now().Add(2 * s.h.cfg.PingInterval))
}

// reject queues an error frame; it is dropped if the client is not reading.
func (s *stream) reject(msg string) {
	select {
	case s.errs <- ErrorFrame{Type: TypeError, Message: msg}:
	default:
	}
}
