package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pkg.jsn.cam/toptokens/pkg/toptokens"
)

// ctxCheckInterval is how many lines pass between context checks.
const ctxCheckInterval = 4096

// PartitionStats summarises one partition run.
type PartitionStats struct {
	BucketTokens []int64 // tokens written per bucket, indexed by bucket id
	Lines        int64
	BlankLines   int64
	Tokens       int64
	BytesRead    int64
}

// BucketsUsed returns how many buckets received at least one token.
func (s *PartitionStats) BucketsUsed() int {
	n := 0
	for _, c := range s.BucketTokens {
		if c > 0 {
			n++
		}
	}
	return n
}

// Partition reads cfg.InputPath once and appends every non-blank, trimmed line
// to the bucket artifact chosen by its stable hash.
func Partition(ctx context.Context, cfg Config) (*PartitionStats, error) {
	file, err := os.Open(cfg.InputPath)
	if err != nil {
		return nil, toptokens.NewStageError(toptokens.StagePartition, cfg.InputPath,
			fmt.Errorf("%w: %w", toptokens.ErrInputUnavailable, err))
	}
	defer file.Close()

	return PartitionReader(ctx, file, cfg)
}

// PartitionReader is Partition over an arbitrary stream.
//
// Either every token lands in exactly one bucket artifact, or the call fails
// and removes the bucket artifacts it wrote.
func PartitionReader(ctx context.Context, r io.Reader, cfg Config) (stats *PartitionStats, err error) {
	cfg, hasher, err := cfg.prepare()
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	dir := cfg.IntermediateDir

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, toptokens.NewStageError(toptokens.StagePartition, dir,
			fmt.Errorf("%w: %w", toptokens.ErrOutputUnavailable, err))
	}

	// A fresh run owns the whole directory; buckets left by an earlier run
	// with a different M must not be mistaken for ours.
	if err := removeArtifacts(dir, isBucketArtifact); err != nil {
		return nil, toptokens.NewStageError(toptokens.StagePartition, dir,
			fmt.Errorf("%w: %w", toptokens.ErrOutputUnavailable, err))
	}

	table := newBucketTable(dir, func(id int) string {
		return toptokens.BucketFileName(id, cfg.Buckets)
	})
	defer func() {
		if cerr := table.Close(); cerr != nil && err == nil {
			err = toptokens.NewStageError(toptokens.StagePartition, dir, cerr)
		}
		if err != nil {
			table.Remove()
			stats = nil
		}
	}()

	counter := &countingReader{r: r}
	var src io.Reader = counter
	if cfg.Progress != nil {
		src = io.TeeReader(counter, cfg.Progress)
	}

	if err := ctx.Err(); err != nil {
		return nil, toptokens.NewStageError(toptokens.StagePartition, "", err)
	}

	stats = &PartitionStats{BucketTokens: make([]int64, cfg.Buckets)}

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), cfg.MaxLineBytes)

	for scanner.Scan() {
		stats.Lines++
		if stats.Lines%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, toptokens.NewStageError(toptokens.StagePartition, "", err)
			}
		}

		token := strings.TrimSpace(scanner.Text())
		if token == "" {
			stats.BlankLines++
			continue
		}

		id := hasher.Bucket(token, cfg.Buckets)
		if err := table.WriteToken(id, token); err != nil {
			return nil, toptokens.NewStageError(toptokens.StagePartition, table.Path(id), err)
		}
		stats.BucketTokens[id]++
		stats.Tokens++
	}
	if err := scanner.Err(); err != nil {
		return nil, toptokens.NewStageError(toptokens.StagePartition, cfg.InputPath,
			fmt.Errorf("%w: %w", toptokens.ErrInputUnavailable, err))
	}
	stats.BytesRead = counter.n

	logger.Printf("[PARTITION] Wrote %d tokens into %d/%d buckets (%d lines, %d blank)",
		stats.Tokens, stats.BucketsUsed(), cfg.Buckets, stats.Lines, stats.BlankLines)

	return stats, nil
}

// bucketTable owns the lazily opened output of each bucket for one partition
// pass. Close flushes and releases every handle; Remove deletes what was
// written.
type bucketTable struct {
	files map[int]*bucketFile
	name  func(id int) string
	dir   string
}

type bucketFile struct {
	f    *os.File
	w    *bufio.Writer
	path string
}

func newBucketTable(dir string, name func(id int) string) *bucketTable {
	return &bucketTable{
		files: make(map[int]*bucketFile),
		name:  name,
		dir:   dir,
	}
}

// Path returns the artifact path of bucket id.
func (t *bucketTable) Path(id int) string {
	return filepath.Join(t.dir, t.name(id))
}

// WriteToken appends token and a newline to bucket id, opening it on first use.
func (t *bucketTable) WriteToken(id int, token string) error {
	bf, ok := t.files[id]
	if !ok {
		path := t.Path(id)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("%w: %w", toptokens.ErrOutputUnavailable, err)
		}
		bf = &bucketFile{f: f, w: bufio.NewWriterSize(f, 32*1024), path: path}
		t.files[id] = bf
	}

	bf.w.WriteString(token)
	if err := bf.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("%w: %w", toptokens.ErrOutputUnavailable, err)
	}
	return nil
}

// Close flushes and closes every open bucket. It is safe to call twice.
func (t *bucketTable) Close() error {
	var errs []error
	for _, bf := range t.files {
		if bf.f == nil {
			continue
		}
		if err := bf.w.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("%w: flush %s: %w", toptokens.ErrOutputUnavailable, bf.path, err))
		}
		if err := bf.f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%w: close %s: %w", toptokens.ErrOutputUnavailable, bf.path, err))
		}
		bf.f = nil
	}
	return errors.Join(errs...)
}

// Remove deletes every artifact this table created.
func (t *bucketTable) Remove() {
	for _, bf := range t.files {
		os.Remove(bf.path)
	}
}

// Opened returns the ids of the buckets that received data.
func (t *bucketTable) Opened() []int {
	ids := make([]int, 0, len(t.files))
	for id := range t.files {
		ids = append(ids, id)
	}
	return ids
}

func isBucketArtifact(name string) bool {
	_, ok := toptokens.ParseBucketFileName(name)
	return ok
}

// removeArtifacts deletes the regular files in dir whose name matches.
func removeArtifacts(dir string, match func(name string) bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !match(entry.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
