package executor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"pkg.jsn.cam/toptokens/pkg/ledger"
	"pkg.jsn.cam/toptokens/pkg/toptokens"
)

// Report is the outcome of a full pipeline run.
type Report struct {
	RunID     string
	Result    *toptokens.Result
	Partition *PartitionStats
	Buckets   []*BucketStats
	Merge     *MergeStats

	PartitionDuration time.Duration
	ReduceDuration    time.Duration
	MergeDuration     time.Duration
}

// Run executes partition, reduce and merge in order. Reduction starts only
// after partitioning finished and merging only after every bucket reduced; a
// failing stage stops the pipeline and is returned as a *toptokens.StageError.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	cfg, _, err := cfg.prepare()
	if err != nil {
		return nil, err
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.New().String()
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	logger := cfg.Logger
	report := &Report{RunID: cfg.RunID}
	rec := newRunRecord(cfg)
	saveRun(cfg, rec)

	fail := func(err error) (*Report, error) {
		rec.Status = ledger.RunStatusFailed
		rec.Error = err.Error()
		rec.CompletedAt = time.Now()
		saveRun(cfg, rec)
		logger.Printf("[PIPELINE] Run %s failed: %v", cfg.RunID, err)
		return nil, err
	}

	logger.Printf("[PIPELINE] Run %s: %s -> %d buckets, top %d (hash %s, exact %t)",
		cfg.RunID, cfg.InputPath, cfg.Buckets, cfg.TopN, cfg.Hash, cfg.Exact)

	start := time.Now()
	pstats, err := Partition(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	report.Partition = pstats
	report.PartitionDuration = time.Since(start)
	rec.PartitionCompletedAt = time.Now()
	rec.Tokens = pstats.Tokens
	rec.BlankLines = pstats.BlankLines
	rec.BytesRead = pstats.BytesRead
	saveRun(cfg, rec)

	start = time.Now()
	bstats, err := ReduceAll(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	report.Buckets = bstats
	report.ReduceDuration = time.Since(start)
	rec.ReduceCompletedAt = time.Now()
	for _, st := range bstats {
		if st.Truncated {
			rec.TruncatedBuckets++
		}
		if st.SubPartitioned {
			rec.SplitBuckets++
		}
	}
	saveRun(cfg, rec)

	start = time.Now()
	result, mstats, err := Merge(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	report.Result = result
	report.Merge = mstats
	report.MergeDuration = time.Since(start)

	if cfg.CleanIntermediate {
		if err := removeArtifacts(cfg.IntermediateDir, isBucketArtifact); err != nil {
			logger.Printf("[PIPELINE] Warning: failed to clean %s: %v", cfg.IntermediateDir, err)
		}
	}

	rec.Status = ledger.RunStatusCompleted
	rec.Results = result.Entries
	rec.Approximate = result.Approximate
	rec.SkippedRecords = mstats.Skipped
	rec.CompletedAt = time.Now()
	saveRun(cfg, rec)

	logger.Printf("[PIPELINE] Run %s completed in %v (partition %v, reduce %v, merge %v)",
		cfg.RunID, time.Since(rec.StartedAt).Round(time.Millisecond),
		report.PartitionDuration.Round(time.Millisecond),
		report.ReduceDuration.Round(time.Millisecond),
		report.MergeDuration.Round(time.Millisecond))

	return report, nil
}

func newRunRecord(cfg Config) *ledger.RunRecord {
	return &ledger.RunRecord{
		ID:              cfg.RunID,
		Status:          ledger.RunStatusRunning,
		InputPath:       cfg.InputPath,
		IntermediateDir: cfg.IntermediateDir,
		OutputDir:       cfg.OutputDir,
		Hash:            cfg.Hash,
		Buckets:         cfg.Buckets,
		TopN:            cfg.TopN,
		Exact:           cfg.Exact,
		StartedAt:       time.Now(),
	}
}

// saveRun records progress in the ledger. Ledger failures are logged, not
// fatal: the history is a convenience, the artifacts are the result.
func saveRun(cfg Config, rec *ledger.RunRecord) {
	if cfg.Ledger == nil {
		return
	}
	if err := cfg.Ledger.SaveRun(rec); err != nil {
		cfg.Logger.Printf("[LEDGER] Warning: failed to save run %s: %v", rec.ID, err)
	}
}
