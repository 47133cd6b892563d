// Package id provides prefixed ULID identifiers for terminal sessions.
//
// Session IDs have the form "sess_<ulid>". ULIDs are lexicographically
// sortable by creation time, so a sorted List() is also creation order.
package id

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies a terminal session
type SessionID string

// SessionPrefix is prepended to every session ULID
const SessionPrefix = "sess"

// ErrMalformed is returned when a string is not a prefixed ULID
var ErrMalformed = errors.New("malformed id")

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand with
// monotonic entropy, so IDs minted in the same millisecond still sort.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewSessionID generates a new session ID
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(SessionPrefix))
}

func (id SessionID) String() string { return string(id) }

// ParseSessionID validates s and returns it as a SessionID.
func ParseSessionID(s string) (SessionID, error) {
	prefix, raw, ok := strings.Cut(s, "_")
	if !ok || prefix != SessionPrefix {
		return "", fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	if _, err := ulid.ParseStrict(raw); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrMalformed, s, err)
	}
	return SessionID(s), nil
}

// Timestamp extracts the creation time encoded in a session ID, to the
// millisecond. Sessions report it as their creation time.
func (id SessionID) Timestamp() (time.Time, error) {
	_, raw, ok := strings.Cut(string(id), "_")
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformed, id)
	}
	parsed, err := ulid.Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
