package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"pkg.jsn.cam/toptokens/pkg/toptokens"
)

// MergeStats summarises a global merge.
type MergeStats struct {
	Artifacts int   `json:"artifacts"`
	Records   int64 `json:"records"`
	Skipped   int64 `json:"skipped"` // malformed records
	Distinct  int   `json:"distinct"`
}

// Merge sums the top-N artifacts in cfg.OutputDir and returns the global top-N.
//
// Each bucket only contributes its local top-N, so a token that misses the cut
// of its own bucket is absent from the merge. That cannot affect the first N
// ranks when the artifacts were reduced with the same N, but a merge asking
// for more entries than the reducers kept can lose tokens, and artifacts
// without a manifest cannot be vouched for. Result.Approximate reports both
// cases. Runs reduced in exact mode always merge exactly.
func Merge(ctx context.Context, cfg Config) (*toptokens.Result, *MergeStats, error) {
	cfg, _, err := cfg.prepare()
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.Logger

	paths, approximate, err := mergeInputs(cfg)
	if err != nil {
		return nil, nil, err
	}

	acc := make(map[string]int64)
	stats := &MergeStats{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, nil, toptokens.NewStageError(toptokens.StageMerge, "", err)
		}
		if err := mergeArtifact(path, acc, stats, cfg); err != nil {
			return nil, nil, toptokens.NewStageError(toptokens.StageMerge, path, err)
		}
		stats.Artifacts++
	}
	stats.Distinct = len(acc)

	if stats.Skipped > 0 {
		logger.Printf("[MERGE] Warning: skipped %d malformed records", stats.Skipped)
	}
	logger.Printf("[MERGE] Merged %d records from %d artifacts (%d distinct tokens)",
		stats.Records, stats.Artifacts, stats.Distinct)

	return &toptokens.Result{
		Entries:     toptokens.TopN(acc, cfg.TopN),
		Approximate: approximate,
	}, stats, nil
}

// mergeInputs lists the artifacts to merge. With a manifest, every bucket it
// names must be present; without one, whatever top-N artifacts exist are used
// and the result is treated as approximate.
func mergeInputs(cfg Config) ([]string, bool, error) {
	dir := cfg.OutputDir

	manifest, err := toptokens.ReadManifest(dir)
	if errors.Is(err, toptokens.ErrMissingManifest) {
		cfg.Logger.Printf("[MERGE] Warning: no %s in %s, assuming approximate input", toptokens.ManifestName, dir)

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, false, toptokens.NewStageError(toptokens.StageMerge, dir,
				fmt.Errorf("%w: %w", toptokens.ErrInputUnavailable, err))
		}
		var paths []string
		for _, entry := range entries {
			if !entry.IsDir() && toptokens.IsTopFileName(entry.Name()) {
				paths = append(paths, filepath.Join(dir, entry.Name()))
			}
		}
		return paths, true, nil
	}
	if err != nil {
		return nil, false, toptokens.NewStageError(toptokens.StageMerge, toptokens.ManifestName, err)
	}
	if err := manifest.CheckCompatible(); err != nil {
		return nil, false, toptokens.NewStageError(toptokens.StageMerge, toptokens.ManifestName, err)
	}

	paths := make([]string, 0, manifest.Buckets)
	for id := 0; id < manifest.Buckets; id++ {
		path := filepath.Join(dir, toptokens.TopFileName(id, manifest.Buckets))
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				err = fmt.Errorf("%w: artifact missing for bucket %d", toptokens.ErrInputUnavailable, id)
			}
			return nil, false, toptokens.NewStageError(toptokens.StageMerge, path, err)
		}
		paths = append(paths, path)
	}
	return paths, manifest.Approximate(cfg.TopN), nil
}

// mergeArtifact adds every well-formed record of path to acc.
func mergeArtifact(path string, acc map[string]int64, stats *MergeStats, cfg Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", toptokens.ErrInputUnavailable, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), cfg.MaxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}

		entry, err := toptokens.ParseRecord(line)
		if err != nil {
			cfg.Logger.Printf("[MERGE] Warning: %s:%d: %v", filepath.Base(path), lineNo, err)
			stats.Skipped++
			continue
		}
		acc[entry.Token] += entry.Count
		stats.Records++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: %w", toptokens.ErrInputUnavailable, err)
	}
	return nil
}
