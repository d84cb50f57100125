package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"pkg.jsn.cam/toptokens/pkg/toptokens"
)

// errTableFull stops counting once a bucket outgrows MaxBucketDistinct.
var errTableFull = errors.New("frequency table full")

// BucketStats describes the reduction of one bucket.
type BucketStats struct {
	Bucket         int   `json:"bucket"`
	Tokens         int64 `json:"tokens"`
	Distinct       int   `json:"distinct"`
	Emitted        int   `json:"emitted"`
	Truncated      bool  `json:"truncated"` // distinct tokens were dropped by the top-N cut
	SubPartitioned bool  `json:"sub_partitioned"`
}

// ReduceAll reduces buckets 0..M-1 in parallel, writes one top-N artifact per
// bucket plus the manifest, and returns per-bucket stats indexed by bucket id.
// On failure every top-N artifact of the output directory is removed.
func ReduceAll(ctx context.Context, cfg Config) ([]*BucketStats, error) {
	cfg, hasher, err := cfg.prepare()
	if err != nil {
		return nil, err
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.New().String()
	}
	if err := checkBucketLayout(cfg.IntermediateDir, cfg.Buckets); err != nil {
		return nil, toptokens.NewStageError(toptokens.StageReduce, cfg.IntermediateDir, err)
	}
	if err := prepareOutputDir(cfg.OutputDir); err != nil {
		return nil, toptokens.NewStageError(toptokens.StageReduce, cfg.OutputDir, err)
	}

	stats := make([]*BucketStats, cfg.Buckets)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Parallelism)
	for id := 0; id < cfg.Buckets; id++ {
		g.Go(func() error {
			_, st, err := reduceBucket(gctx, cfg, hasher, id)
			stats[id] = st
			return err
		})
	}
	if err := g.Wait(); err != nil {
		discardTopArtifacts(cfg)
		return nil, err
	}

	manifest := &toptokens.Manifest{
		CreatedAt:     time.Now().UTC(),
		FormatVersion: toptokens.FormatVersion,
		RunID:         cfg.RunID,
		Hash:          hasher.Algorithm(),
		Buckets:       cfg.Buckets,
		TopN:          cfg.TopN,
		Exact:         cfg.Exact,
	}
	var tokens int64
	split := 0
	for _, st := range stats {
		tokens += st.Tokens
		if st.Truncated {
			manifest.Truncated = append(manifest.Truncated, st.Bucket)
		}
		if st.SubPartitioned {
			split++
		}
	}
	if err := toptokens.WriteManifest(cfg.OutputDir, manifest); err != nil {
		return nil, toptokens.NewStageError(toptokens.StageReduce, toptokens.ManifestName, err)
	}

	cfg.Logger.Printf("[REDUCE] Reduced %d buckets (%d tokens, %d truncated, %d split) into %s",
		cfg.Buckets, tokens, len(manifest.Truncated), split, cfg.OutputDir)

	return stats, nil
}

// ReduceBucket reduces a single bucket and writes its top-N artifact. The
// manifest of the output directory is removed: it describes a whole run, and
// Merge treats artifacts without one as approximate.
func ReduceBucket(ctx context.Context, cfg Config, id int) (toptokens.List, *BucketStats, error) {
	cfg, hasher, err := cfg.prepare()
	if err != nil {
		return nil, nil, err
	}
	if id < 0 || id >= cfg.Buckets {
		return nil, nil, fmt.Errorf("%w: bucket %d outside [0, %d)", toptokens.ErrInvalidConfig, id, cfg.Buckets)
	}
	if err := checkBucketLayout(cfg.IntermediateDir, cfg.Buckets); err != nil {
		return nil, nil, toptokens.NewStageError(toptokens.StageReduce, cfg.IntermediateDir, err)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, nil, toptokens.NewStageError(toptokens.StageReduce, cfg.OutputDir,
			fmt.Errorf("%w: %w", toptokens.ErrOutputUnavailable, err))
	}
	manifest := filepath.Join(cfg.OutputDir, toptokens.ManifestName)
	if err := os.Remove(manifest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, toptokens.NewStageError(toptokens.StageReduce, manifest,
			fmt.Errorf("%w: %w", toptokens.ErrOutputUnavailable, err))
	}
	return reduceBucket(ctx, cfg, hasher, id)
}

func reduceBucket(ctx context.Context, cfg Config, hasher toptokens.Hasher, id int) (toptokens.List, *BucketStats, error) {
	in := filepath.Join(cfg.IntermediateDir, toptokens.BucketFileName(id, cfg.Buckets))
	out := filepath.Join(cfg.OutputDir, toptokens.TopFileName(id, cfg.Buckets))

	r := &bucketReducer{cfg: cfg, hasher: hasher}
	list, st, err := r.reduceFile(ctx, in, 0)
	if err != nil {
		return nil, nil, toptokens.NewStageError(toptokens.StageReduce, in, err)
	}
	st.Bucket = id

	if err := writeListFile(out, list); err != nil {
		return nil, nil, toptokens.NewStageError(toptokens.StageReduce, out, err)
	}

	if st.SubPartitioned {
		cfg.Logger.Printf("[REDUCE] Bucket %d: %d tokens, %d distinct, split to stay under %d",
			id, st.Tokens, st.Distinct, cfg.MaxBucketDistinct)
	}

	return list, st, nil
}

// bucketReducer counts one bucket file, splitting it when it is too large to
// count in memory.
type bucketReducer struct {
	cfg    Config
	hasher toptokens.Hasher
}

func (r *bucketReducer) reduceFile(ctx context.Context, path string, level int) (toptokens.List, *BucketStats, error) {
	limit := r.cfg.MaxBucketDistinct
	if level >= r.cfg.SubDepth {
		limit = 0
	}

	counts, tokens, err := r.count(ctx, path, limit)
	if errors.Is(err, errTableFull) {
		return r.split(ctx, path, level)
	}
	if err != nil {
		return nil, nil, err
	}

	if r.cfg.MaxBucketDistinct > 0 && len(counts) > r.cfg.MaxBucketDistinct {
		r.cfg.Logger.Printf("[REDUCE] Warning: %s holds %d distinct tokens after %d splits",
			path, len(counts), level)
	}

	list := toptokens.TopN(counts, r.cfg.cutoff())
	return list, &BucketStats{
		Tokens:    tokens,
		Distinct:  len(counts),
		Emitted:   len(list),
		Truncated: len(list) < len(counts),
	}, nil
}

// count builds the frequency table of path. A missing file is an empty bucket.
func (r *bucketReducer) count(ctx context.Context, path string, limit int) (map[string]int64, int64, error) {
	counts := make(map[string]int64)
	var tokens int64

	err := scanTokens(ctx, path, r.cfg.MaxLineBytes, func(token string) error {
		counts[token]++
		tokens++
		if limit > 0 && len(counts) > limit {
			return errTableFull
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return counts, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return counts, tokens, nil
}

// split re-partitions path into SubPartitions files by the next slice of hash
// bits and reduces each. Sub-buckets never share a token, so merging their
// lists gives the same result as reducing path in one pass.
func (r *bucketReducer) split(ctx context.Context, path string, level int) (toptokens.List, *BucketStats, error) {
	fanout := r.cfg.SubPartitions
	dir, err := os.MkdirTemp(filepath.Dir(path), "split-*")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", toptokens.ErrOutputUnavailable, err)
	}
	defer os.RemoveAll(dir)

	table := newBucketTable(dir, func(id int) string {
		return toptokens.BucketFileName(id, fanout)
	})
	err = scanTokens(ctx, path, r.cfg.MaxLineBytes, func(token string) error {
		sub := toptokens.SubBucket(r.hasher.Sum64(token), r.cfg.Buckets, fanout, level+1)
		return table.WriteToken(sub, token)
	})
	if cerr := table.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, nil, err
	}

	st := &BucketStats{SubPartitioned: true}
	lists := make([]toptokens.List, 0, fanout)
	for _, sub := range table.Opened() {
		l, s, err := r.reduceFile(ctx, table.Path(sub), level+1)
		if err != nil {
			return nil, nil, err
		}
		lists = append(lists, l)
		st.Tokens += s.Tokens
		st.Distinct += s.Distinct
	}

	list := toptokens.MergeLists(lists, r.cfg.cutoff())
	st.Emitted = len(list)
	st.Truncated = len(list) < st.Distinct
	return list, st, nil
}

// scanTokens calls fn for every non-blank trimmed line of path.
func scanTokens(ctx context.Context, path string, maxLine int, fn func(token string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err != nil {
		return fmt.Errorf("%w: %w", toptokens.ErrInputUnavailable, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	var lines int64
	for scanner.Scan() {
		lines++
		if lines%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		token := strings.TrimSpace(scanner.Text())
		if token == "" {
			continue
		}
		if err := fn(token); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: %w", toptokens.ErrInputUnavailable, err)
	}
	return nil
}

// writeListFile writes l to path through a temporary file so a failed write
// never leaves a truncated artifact behind.
func writeListFile(path string, l toptokens.List) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("%w: %w", toptokens.ErrOutputUnavailable, err)
	}

	werr := toptokens.WriteList(f, l)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %w", toptokens.ErrOutputUnavailable, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %w", toptokens.ErrOutputUnavailable, err)
	}
	return nil
}

// discardTopArtifacts removes the top-N artifacts of a failed reduction.
// Cleanup errors are logged; the reduction error is what the caller sees.
func discardTopArtifacts(cfg Config) {
	if err := removeArtifacts(cfg.OutputDir, toptokens.IsTopFileName); err != nil {
		cfg.Logger.Printf("[REDUCE] Warning: failed to remove partial artifacts in %s: %v", cfg.OutputDir, err)
	}
}

// checkBucketLayout fails when dir holds bucket artifacts that a reduction
// over m buckets would not read. That happens when partition ran with a
// different bucket count, and reducing anyway would drop those tokens.
func checkBucketLayout(dir string, m int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("%w: %w", toptokens.ErrInputUnavailable, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id, ok := toptokens.ParseBucketFileName(entry.Name())
		if !ok {
			continue
		}
		if id >= m || entry.Name() != toptokens.BucketFileName(id, m) {
			return fmt.Errorf("%w: %s does not belong to a %d-bucket partition; reduce with the bucket count used to partition",
				toptokens.ErrInvalidConfig, entry.Name(), m)
		}
	}
	return nil
}

// prepareOutputDir creates dir and clears top-N artifacts and the manifest of
// any previous run.
func prepareOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: %w", toptokens.ErrOutputUnavailable, err)
	}
	err := removeArtifacts(dir, func(name string) bool {
		return toptokens.IsTopFileName(name) || name == toptokens.ManifestName
	})
	if err != nil {
		return fmt.Errorf("%w: %w", toptokens.ErrOutputUnavailable, err)
	}
	return nil
}
