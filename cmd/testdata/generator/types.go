package generator

import (
	"io"
	"math/rand/v2"
)

// Generator produces synthetic token streams, one token per line.
type Generator interface {
	// Init seeds the generator with its own random source
	Init(r *rand.Rand)

	// WriteLine writes one line (a token, or a blank line) to w
	WriteLine(w io.Writer) error

	// Description returns a human-readable description of the stream
	Description() string

	// DefaultCount returns the suggested default number of lines
	DefaultCount() int64
}
