// Package id provides centralized identifier generation for the pipeline.
//
// Two identifier families live here:
//   - Wire identifiers: 16-byte trace IDs and 8-byte span IDs drawn from a
//     cryptographically secure entropy source, matching the fixed widths the
//     export payload requires.
//   - Batch identifiers: prefixed ULIDs attached to every export batch so a
//     batch can be followed from the worker log to the receiving end.
//
// ULIDs are lexicographically sortable, which keeps batch IDs useful for
// timeline queries on the receiving side without a separate timestamp.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// BatchPrefix is prepended to batch ULIDs for readable logs.
const BatchPrefix = "batch"

// Generator produces trace, span, and batch identifiers.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{
		entropy: rand.Reader,
	}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// TraceID fills a 16-byte trace identifier.
func (g *Generator) TraceID() [16]byte {
	var b [16]byte
	g.read(b[:])
	return b
}

// SpanID fills an 8-byte span identifier.
func (g *Generator) SpanID() [8]byte {
	var b [8]byte
	g.read(b[:])
	return b
}

// BatchID creates a prefixed ULID for one export batch.
func (g *Generator) BatchID() string {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	u := ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
	return fmt.Sprintf("%s_%s", BatchPrefix, u.String())
}

func (g *Generator) read(b []byte) {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	// crypto/rand.Reader never fails on supported platforms; a short read
	// here would leave a zero suffix, which the validity checks reject.
	_, _ = io.ReadFull(g.entropy, b)
}
