package generator

import (
	"io"
	"math/rand/v2"
	"strconv"
)

// ZipfGenerator draws word_<i> tokens with Zipf-distributed frequency, so a
// few tokens dominate and the long tail is rare.
type ZipfGenerator struct {
	Vocabulary int
	Skew       float64 // s > 1
	zipf       *rand.Zipf
	words      []string
}

func (g *ZipfGenerator) Init(r *rand.Rand) {
	if g.Skew <= 1 {
		g.Skew = 1.1
	}
	g.zipf = rand.NewZipf(r, g.Skew, 1, uint64(g.Vocabulary-1))
	g.words = vocabulary(g.Vocabulary)
}

func (g *ZipfGenerator) WriteLine(w io.Writer) error {
	_, err := w.Write([]byte(g.words[g.zipf.Uint64()]))
	return err
}

func (g *ZipfGenerator) Description() string {
	return "Zipf-distributed tokens: word_<rank>, rank 0 most frequent"
}

func (g *ZipfGenerator) DefaultCount() int64 {
	return 1e6
}

// UniformGenerator draws tokens uniformly, the worst case for a local top-N
// cut because no token stands out inside its bucket.
type UniformGenerator struct {
	Vocabulary int
	rand       *rand.Rand
	words      []string
}

func (g *UniformGenerator) Init(r *rand.Rand) {
	g.rand = r
	g.words = vocabulary(g.Vocabulary)
}

func (g *UniformGenerator) WriteLine(w io.Writer) error {
	_, err := w.Write([]byte(g.words[g.rand.IntN(len(g.words))]))
	return err
}

func (g *UniformGenerator) Description() string {
	return "Uniformly distributed tokens: word_<i>"
}

func (g *UniformGenerator) DefaultCount() int64 {
	return 1e6
}

// PaddedGenerator wraps another generator with surrounding whitespace and
// blank lines, which the pipeline must trim and skip.
type PaddedGenerator struct {
	Inner Generator
	rand  *rand.Rand
}

var pads = []string{"", " ", "  ", "\t", " \t "}

func (g *PaddedGenerator) Init(r *rand.Rand) {
	g.rand = r
	g.Inner.Init(r)
}

func (g *PaddedGenerator) WriteLine(w io.Writer) error {
	if g.rand.IntN(10) == 0 {
		_, err := io.WriteString(w, pads[g.rand.IntN(len(pads))]+"\n")
		return err
	}
	if _, err := io.WriteString(w, pads[g.rand.IntN(len(pads))]); err != nil {
		return err
	}
	if err := g.Inner.WriteLine(w); err != nil {
		return err
	}
	return nil
}

func (g *PaddedGenerator) Description() string {
	return g.Inner.Description() + ", padded with whitespace and ~10% blank lines"
}

func (g *PaddedGenerator) DefaultCount() int64 {
	return g.Inner.DefaultCount()
}

func vocabulary(n int) []string {
	if n < 1 {
		n = 1
	}
	words := make([]string, n)
	for i := range words {
		words[i] = "word_" + strconv.Itoa(i) + "\n"
	}
	return words
}
