package executor

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"

	"pkg.jsn.cam/toptokens/pkg/toptokens"
)

// newTestConfig returns a config rooted in a fresh temp dir with logging
// discarded.
func newTestConfig(t *testing.T, buckets, topN int) Config {
	t.Helper()

	root := t.TempDir()
	return Config{
		InputPath:       filepath.Join(root, "input.txt"),
		IntermediateDir: filepath.Join(root, "groups"),
		OutputDir:       filepath.Join(root, "top"),
		Buckets:         buckets,
		TopN:            topN,
		Parallelism:     4,
		Logger:          log.New(io.Discard, "", 0),
	}
}

func writeInput(t *testing.T, cfg Config, lines ...string) {
	t.Helper()

	data := strings.Join(lines, "\n")
	if len(lines) > 0 {
		data += "\n"
	}
	if err := os.WriteFile(cfg.InputPath, []byte(data), 0644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}
}

// repeat returns token n times.
func repeat(token string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = token
	}
	return out
}

// readLines returns the non-empty lines of path.
func readLines(t *testing.T, path string) []string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// readList parses a top-N artifact.
func readList(t *testing.T, path string) toptokens.List {
	t.Helper()

	var l toptokens.List
	for _, line := range readLines(t, path) {
		e, err := toptokens.ParseRecord(line)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		l = append(l, e)
	}
	return l
}

// listDir returns the sorted names in dir.
func listDir(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// bruteForce counts lines exactly the way the pipeline tokenizes them.
func bruteForce(lines []string, n int) toptokens.List {
	counts := make(map[string]int64)
	for _, line := range lines {
		if token := strings.TrimSpace(line); token != "" {
			counts[token]++
		}
	}
	return toptokens.TopN(counts, n)
}

// tokensInBucket returns count tokens of the form prefixN that hash into
// bucket id for m buckets.
func tokensInBucket(t *testing.T, hasher toptokens.Hasher, prefix string, id, m, count int) []string {
	t.Helper()

	var out []string
	for i := 0; len(out) < count; i++ {
		if i > 100000 {
			t.Fatalf("no %d tokens found for bucket %d", count, id)
		}
		token := prefix + strconv.Itoa(i)
		if hasher.Bucket(token, m) == id {
			out = append(out, token)
		}
	}
	return out
}
