package middleware

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
)

// GzipConfig defines response compression options.
type GzipConfig struct {
	Level int
	// Exempt lists route templates that are never compressed, such as the
	// metrics scrape, which negotiates its own encoding.
	Exempt []string
}

// DefaultGzipConfig returns default compression configuration.
func DefaultGzipConfig() GzipConfig {
	return GzipConfig{
		Level:  gzip.DefaultCompression,
		Exempt: []string{"/metrics"},
	}
}

type gzipWriter struct {
	gin.ResponseWriter
	writer *gzip.Writer
}

func (g *gzipWriter) Write(data []byte) (int, error) {
	g.Header().Del("Content-Length")
	return g.writer.Write(data)
}

func (g *gzipWriter) WriteString(s string) (int, error) {
	g.Header().Del("Content-Length")
	return g.writer.Write([]byte(s))
}

func (g *gzipWriter) WriteHeader(code int) {
	g.Header().Del("Content-Length")
	g.ResponseWriter.WriteHeader(code)
}

// Gzip compresses JSON responses for clients that accept it. WebSocket
// upgrades and preflight requests pass through untouched.
func Gzip(cfg GzipConfig) gin.HandlerFunc {
	exempt := make(map[string]struct{}, len(cfg.Exempt))
	for _, path := range cfg.Exempt {
		exempt[path] = struct{}{}
	}
	pool := sync.Pool{
		New: func() any {
			w, err := gzip.NewWriterLevel(nil, cfg.Level)
			if err != nil {
				w = gzip.NewWriter(nil)
			}
			return w
		},
	}

	return func(c *gin.Context) {
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") ||
			c.Request.Method == http.MethodOptions ||
			c.IsWebsocket() {
			c.Next()
			return
		}
		if _, ok := exempt[c.FullPath()]; ok {
			c.Next()
			return
		}

		gz := pool.Get().(*gzip.Writer)
		gz.Reset(c.Writer)

		c.Header("Content-Encoding", "gzip")
		c.Header("Vary", "Accept-Encoding")
		c.Writer = &gzipWriter{ResponseWriter: c.Writer, writer: gz}
		defer func() {
			_ = gz.Close()
			pool.Put(gz)
		}()

		c.Next()
	}
}
