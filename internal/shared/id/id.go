// Package id provides prefixed ULID generation for log and wire correlation.
//
// Handles are plain integers owned by the URI handler registry. Everything
// else that needs a globally unique, sortable identifier uses this package:
//   - Dispatch IDs correlate one external URI across both processes
//   - Connection IDs name an extension host connection on the main side
//   - Request IDs tag HTTP intake requests
package id

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// DispatchID identifies one routed external URI
type DispatchID string

// ConnectionID identifies an extension host connection
type ConnectionID string

// RequestID identifies an API request
type RequestID string

const (
	DispatchPrefix   = "dsp"
	ConnectionPrefix = "conn"
	RequestPrefix    = "req"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source
// Useful for testing with deterministic entropy
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewDispatchID generates a new dispatch ID
func NewDispatchID() DispatchID {
	return DispatchID(Default().GenerateWithPrefix(DispatchPrefix))
}

// NewConnectionID generates a new connection ID
func NewConnectionID() ConnectionID {
	return ConnectionID(Default().GenerateWithPrefix(ConnectionPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (id DispatchID) String() string   { return string(id) }
func (id ConnectionID) String() string { return string(id) }
func (id RequestID) String() string    { return string(id) }

// IsValid checks if an ID string is a valid ULID, with or without prefix
func IsValid(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// Parse parses a ULID string, stripping a known prefix
func Parse(id string) (ulid.ULID, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	return ulid.Parse(id)
}

// Timestamp extracts the timestamp from a ULID
func Timestamp(id string) (time.Time, error) {
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}

type dispatchKey struct{}

// WithDispatchID returns ctx carrying d.
func WithDispatchID(ctx context.Context, d DispatchID) context.Context {
	return context.WithValue(ctx, dispatchKey{}, d)
}

// DispatchIDFrom returns the dispatch ID carried by ctx, if any.
func DispatchIDFrom(ctx context.Context) (DispatchID, bool) {
	d, ok := ctx.Value(dispatchKey{}).(DispatchID)
	return d, ok && d != ""
}
