package integration

import (
	"bytes"
	"context"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"pkg.jsn.cam/toptokens/cmd/testdata/generator"
	"pkg.jsn.cam/toptokens/pkg/executor"
	"pkg.jsn.cam/toptokens/pkg/ledger"
	"pkg.jsn.cam/toptokens/pkg/toptokens"
)

// generate writes count lines from the named generator and returns them.
func generate(t *testing.T, name string, count int, path string) []byte {
	t.Helper()

	gen, err := generator.Get(name, 2000)
	if err != nil {
		t.Fatalf("generator.Get(%q) failed: %v", name, err)
	}
	gen.Init(rand.New(rand.NewPCG(42, 1)))

	var buf bytes.Buffer
	for i := 0; i < count; i++ {
		if err := gen.WriteLine(&buf); err != nil {
			t.Fatalf("WriteLine failed: %v", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write input: %v", err)
	}
	return buf.Bytes()
}

// exactTopN counts the input in memory.
func exactTopN(data []byte, n int) toptokens.List {
	counts := make(map[string]int64)
	for _, line := range strings.Split(string(data), "\n") {
		if token := strings.TrimSpace(line); token != "" {
			counts[token]++
		}
	}
	return toptokens.TopN(counts, n)
}

// TestPipeline_MatchesInMemoryCount runs the full partition, reduce and merge
// pipeline over generated streams and checks it against an in-memory count.
func TestPipeline_MatchesInMemoryCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		generator   string
		buckets     int
		topN        int
		maxDistinct int
	}{
		{generator: "zipf", buckets: 16, topN: 10},
		{generator: "uniform", buckets: 7, topN: 25},
		{generator: "padded", buckets: 32, topN: 5},
		{generator: "urls", buckets: 4, topN: 20},
		{generator: "uniform", buckets: 3, topN: 10, maxDistinct: 50},
	}

	for _, tt := range tests {
		t.Run(tt.generator, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			input := filepath.Join(root, "input.txt")
			data := generate(t, tt.generator, 20000, input)

			history := ledger.NewMemoryLedger()
			cfg := executor.Config{
				InputPath:         input,
				IntermediateDir:   filepath.Join(root, "groups"),
				OutputDir:         filepath.Join(root, "top"),
				Buckets:           tt.buckets,
				TopN:              tt.topN,
				MaxBucketDistinct: tt.maxDistinct,
				SubPartitions:     4,
				Logger:            log.New(io.Discard, "", 0),
				Ledger:            history,
			}

			report, err := executor.Run(context.Background(), cfg)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}

			want := exactTopN(data, tt.topN)
			if !slices.Equal(report.Result.Entries, want) {
				t.Errorf("Run() = %v\nwant %v", report.Result.Entries, want)
			}
			if report.Result.Approximate {
				t.Error("merge with the reducers' N reported approximate")
			}

			runs, err := history.ListRuns()
			if err != nil || len(runs) != 1 || runs[0].Status != ledger.RunStatusCompleted {
				t.Errorf("ledger = %v, %v; want one completed run", runs, err)
			}
		})
	}
}

// TestPipeline_StagesSeparately drives each stage on its own, the way the CLI
// subcommands do, with a wider merge than reduce.
func TestPipeline_StagesSeparately(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	input := filepath.Join(root, "input.txt")
	data := generate(t, "zipf", 10000, input)

	cfg := executor.Config{
		InputPath:       input,
		IntermediateDir: filepath.Join(root, "groups"),
		OutputDir:       filepath.Join(root, "top"),
		Buckets:         8,
		TopN:            5,
		Exact:           true,
		Logger:          log.New(io.Discard, "", 0),
	}
	ctx := context.Background()

	if _, err := executor.Partition(ctx, cfg); err != nil {
		t.Fatalf("Partition failed: %v", err)
	}
	if _, err := executor.ReduceAll(ctx, cfg); err != nil {
		t.Fatalf("ReduceAll failed: %v", err)
	}

	cfg.TopN = 50
	result, _, err := executor.Merge(ctx, cfg)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if want := exactTopN(data, 50); !slices.Equal(result.Entries, want) {
		t.Errorf("Merge() = %v\nwant %v", result.Entries, want)
	}
	if result.Approximate {
		t.Error("exact reduce produced an approximate merge")
	}
}
