package generator

import (
	"fmt"
	"sort"
)

// DefaultVocabulary is the number of distinct tokens generators draw from.
const DefaultVocabulary = 10000

// Registry maps generator names to factories taking a vocabulary size.
var Registry = map[string]func(vocab int) Generator{
	"zipf":    func(vocab int) Generator { return &ZipfGenerator{Vocabulary: vocab, Skew: 1.1} },
	"uniform": func(vocab int) Generator { return &UniformGenerator{Vocabulary: vocab} },
	"padded":  func(vocab int) Generator { return &PaddedGenerator{Inner: &ZipfGenerator{Vocabulary: vocab, Skew: 1.1}} },
	"urls":    func(int) Generator { return &URLGenerator{} },
}

// Get returns a generator by name
func Get(name string, vocab int) (Generator, error) {
	factory, exists := Registry[name]
	if !exists {
		return nil, fmt.Errorf("unknown generator: %s", name)
	}
	if vocab <= 0 {
		vocab = DefaultVocabulary
	}
	return factory(vocab), nil
}

// List returns all available generator names, sorted
func List() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
