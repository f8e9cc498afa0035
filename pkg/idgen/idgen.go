// Package idgen produces client-side placeholder identifiers: line GUIDs and
// human-readable order numbers.
//
// Neither identifier is cryptographically strong. Server-assigned line ids
// always take precedence over GUIDs, and order numbers share a small daily
// keyspace (26^3 × 100 suffixes), so uniqueness is left to the backend.
package idgen

import (
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultOrderPrefix = "PFX"

	orderLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	orderDate    = "20060102"
)

// Generator is safe for concurrent use.
type Generator struct {
	mu     sync.Mutex
	rnd    *rand.Rand
	prefix string
	now    func() time.Time
}

type Option func(*Generator)

// WithSource swaps the random source, mainly so tests are deterministic.
func WithSource(src rand.Source) Option {
	return func(g *Generator) {
		if src != nil {
			g.rnd = rand.New(src)
		}
	}
}

// WithClock overrides the wall clock used to stamp order numbers.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// New builds a generator whose order numbers start with prefix.
func New(prefix string, opts ...Option) *Generator {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultOrderPrefix
	}
	g := &Generator{
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		prefix: prefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GUID returns a version 4 layout identifier (8-4-4-4-12, variant bits 10).
func (g *Generator) GUID() string {
	id, err := uuid.NewRandomFromReader(lockedReader{g})
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// OrderNumber formats {prefix}{yyyyMMdd}-{AAA}{NN} for the current clock time.
func (g *Generator) OrderNumber() string {
	return g.OrderNumberAt(g.now())
}

// OrderNumberAt formats an order number for the supplied instant.
func (g *Generator) OrderNumberAt(at time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var suffix strings.Builder
	for i := 0; i < 3; i++ {
		suffix.WriteByte(orderLetters[g.rnd.Intn(len(orderLetters))])
	}
	return fmt.Sprintf("%s%s-%s%02d", g.prefix, at.Format(orderDate), suffix.String(), g.rnd.Intn(100))
}

// Now exposes the generator clock so document dates match the order number.
func (g *Generator) Now() time.Time {
	return g.now()
}

type lockedReader struct {
	g *Generator
}

func (r lockedReader) Read(p []byte) (int, error) {
	r.g.mu.Lock()
	defer r.g.mu.Unlock()
	return r.g.rnd.Read(p)
}

var _ io.Reader = lockedReader{}
