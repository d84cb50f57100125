package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"pkg.jsn.cam/toptokens/pkg/executor"
	"pkg.jsn.cam/toptokens/pkg/ledger"
	"pkg.jsn.cam/toptokens/pkg/toptokens"
)

const defaultLedgerPath = "./var/toptokens.db"

// options collects the flags shared by the pipeline commands.
type options struct {
	cfg        executor.Config
	hash       string
	ledgerPath string
	quiet      bool
}

func (o *options) bindLayout(fs *flag.FlagSet) {
	fs.IntVar(&o.cfg.Buckets, "m", executor.DefaultBuckets, "number of buckets (M)")
	fs.IntVar(&o.cfg.TopN, "n", executor.DefaultTopN, "number of top tokens to keep (N)")
	fs.StringVar(&o.cfg.IntermediateDir, "groups", executor.DefaultIntermediateDir, "directory for bucket files")
	fs.StringVar(&o.cfg.OutputDir, "out", executor.DefaultOutputDir, "directory for per-bucket top-N files")
	fs.StringVar(&o.hash, "hash", string(toptokens.DefaultHash), "bucket hash: xxhash64 or fnv1a64")
	fs.IntVar(&o.cfg.MaxLineBytes, "max-line", executor.DefaultMaxLineBytes, "longest accepted line in bytes")
	fs.BoolVar(&o.quiet, "quiet", false, "suppress progress and log output")
}

func (o *options) bindInput(fs *flag.FlagSet) {
	fs.StringVar(&o.cfg.InputPath, "input", "", "input file, one token per line (required)")
}

func (o *options) bindReduce(fs *flag.FlagSet) {
	fs.BoolVar(&o.cfg.Exact, "exact", false, "keep whole bucket tables so the merge is exact")
	fs.IntVar(&o.cfg.Parallelism, "parallel", 0, "concurrent bucket reducers (0 = GOMAXPROCS)")
	fs.IntVar(&o.cfg.MaxBucketDistinct, "max-distinct", 0, "split buckets with more distinct tokens than this (0 = never)")
	fs.IntVar(&o.cfg.SubPartitions, "split-fanout", executor.DefaultSubPartitions, "sub-buckets per split")
	fs.IntVar(&o.cfg.SubDepth, "split-depth", executor.DefaultSubDepth, "maximum nested splits")
}

func (o *options) bindLedger(fs *flag.FlagSet) {
	fs.StringVar(&o.ledgerPath, "ledger", defaultLedgerPath, "run history database (empty disables)")
}

func (o *options) config() executor.Config {
	cfg := o.cfg
	cfg.Hash = toptokens.HashAlgorithm(o.hash)
	if o.quiet {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	return cfg
}

func runCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	o := &options{}
	o.bindLayout(fs)
	o.bindInput(fs)
	o.bindReduce(fs)
	o.bindLedger(fs)
	fs.DurationVar(&o.cfg.Timeout, "timeout", 0, "deadline for the whole run (0 = none)")
	fs.BoolVar(&o.cfg.CleanIntermediate, "clean", false, "remove bucket files after a successful run")
	fs.Parse(args)

	if o.cfg.InputPath == "" {
		return errors.New("-input is required")
	}
	cfg := o.config()

	if o.ledgerPath != "" {
		l, err := ledger.NewBboltLedger(o.ledgerPath)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer l.Close()
		cfg.Ledger = l
	}

	bar := newProgressBar(cfg.InputPath, o.quiet)
	if bar != nil {
		cfg.Progress = bar
	}

	report, err := executor.Run(ctx, cfg)
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	p := report.Partition
	fmt.Printf("Run %s: %s tokens (%s read), %d/%d buckets used\n\n",
		report.RunID, humanize.Comma(p.Tokens), humanize.Bytes(uint64(p.BytesRead)),
		p.BucketsUsed(), len(p.BucketTokens))

	return toptokens.Render(os.Stdout, report.Result)
}

func partitionCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("partition", flag.ExitOnError)
	o := &options{}
	o.bindLayout(fs)
	o.bindInput(fs)
	fs.Parse(args)

	if o.cfg.InputPath == "" {
		return errors.New("-input is required")
	}
	cfg := o.config()

	bar := newProgressBar(cfg.InputPath, o.quiet)
	if bar != nil {
		cfg.Progress = bar
	}

	stats, err := executor.Partition(ctx, cfg)
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Partitioned %s tokens into %d/%d buckets under %s\n",
		humanize.Comma(stats.Tokens), stats.BucketsUsed(), len(stats.BucketTokens), cfg.IntermediateDir)
	fmt.Printf("  Lines read:  %s (%s blank)\n", humanize.Comma(stats.Lines), humanize.Comma(stats.BlankLines))
	fmt.Printf("  Bytes read:  %s\n", humanize.Bytes(uint64(stats.BytesRead)))
	return nil
}

func reduceCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reduce", flag.ExitOnError)
	o := &options{}
	o.bindLayout(fs)
	o.bindReduce(fs)
	fs.Parse(args)
	cfg := o.config()

	stats, err := executor.ReduceAll(ctx, cfg)
	if err != nil {
		return err
	}

	var tokens int64
	truncated, split := 0, 0
	for _, st := range stats {
		tokens += st.Tokens
		if st.Truncated {
			truncated++
		}
		if st.SubPartitioned {
			split++
		}
	}

	fmt.Printf("Reduced %d buckets (%s tokens) into %s\n", len(stats), humanize.Comma(tokens), cfg.OutputDir)
	fmt.Printf("  Truncated buckets: %d\n", truncated)
	fmt.Printf("  Split buckets:     %d\n", split)
	return nil
}

func mergeCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	o := &options{}
	o.bindLayout(fs)
	fs.Parse(args)

	result, stats, err := executor.Merge(ctx, o.config())
	if err != nil {
		return err
	}
	if stats.Skipped > 0 {
		fmt.Fprintf(os.Stderr, "Skipped %d malformed records\n", stats.Skipped)
	}

	return toptokens.Render(os.Stdout, result)
}

func historyCmd(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	o := &options{}
	o.bindLedger(fs)
	id := fs.String("id", "", "show one run in detail")
	prune := fs.Int("prune", -1, "delete all but the N newest runs")
	fs.Parse(args)

	if o.ledgerPath == "" {
		return errors.New("-ledger is required")
	}
	l, err := ledger.NewBboltLedger(o.ledgerPath)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer l.Close()

	switch {
	case *prune >= 0:
		removed, err := ledger.Prune(l, *prune)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d runs\n", removed)
		return nil
	case *id != "":
		run, err := l.LoadRun(*id)
		if err != nil {
			return fmt.Errorf("%w: %s", err, *id)
		}
		return printRun(os.Stdout, run)
	default:
		runs, err := l.ListRuns()
		if err != nil {
			return err
		}
		printRuns(os.Stdout, runs)
		return nil
	}
}

// newProgressBar returns a byte progress bar sized to path, or nil when quiet.
func newProgressBar(path string, quiet bool) *progressbar.ProgressBar {
	if quiet {
		return nil
	}
	size := int64(-1)
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	return progressbar.DefaultBytes(size, "partitioning")
}

func printRuns(w io.Writer, runs []*ledger.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found")
		return
	}

	fmt.Fprintf(w, "%-36s %-10s %-8s %-5s %-12s %s\n", "RUN ID", "STATUS", "BUCKETS", "TOP", "TOKENS", "STARTED")
	fmt.Fprintln(w, "─────────────────────────────────────────────────────────────────────────────────────────────")
	for _, run := range runs {
		fmt.Fprintf(w, "%-36s %-10s %-8d %-5d %-12s %s\n",
			run.ID,
			run.Status,
			run.Buckets,
			run.TopN,
			humanize.Comma(run.Tokens),
			run.StartedAt.Format("2006-01-02 15:04:05"))
	}
}

func printRun(w io.Writer, run *ledger.RunRecord) error {
	partition, reduce, merge, total := run.Durations()

	fmt.Fprintf(w, "Run Details:\n")
	fmt.Fprintf(w, "  ID:           %s\n", run.ID)
	fmt.Fprintf(w, "  Status:       %s\n", run.Status)
	fmt.Fprintf(w, "  Input:        %s (%s)\n", run.InputPath, humanize.Bytes(uint64(run.BytesRead)))
	fmt.Fprintf(w, "  Buckets:      %d (%s hash)\n", run.Buckets, run.Hash)
	fmt.Fprintf(w, "  Top N:        %d (exact: %t)\n", run.TopN, run.Exact)
	fmt.Fprintf(w, "  Tokens:       %s (%s blank lines)\n", humanize.Comma(run.Tokens), humanize.Comma(run.BlankLines))
	fmt.Fprintf(w, "  Truncated:    %d buckets\n", run.TruncatedBuckets)
	fmt.Fprintf(w, "  Split:        %d buckets\n", run.SplitBuckets)
	fmt.Fprintf(w, "  Started:      %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))

	if !run.CompletedAt.IsZero() {
		fmt.Fprintf(w, "  Completed:    %s (%s)\n", run.CompletedAt.Format("2006-01-02 15:04:05"),
			humanize.Time(run.CompletedAt))
		fmt.Fprintf(w, "  Duration:     %v (partition %v, reduce %v, merge %v)\n",
			total.Round(time.Millisecond), partition.Round(time.Millisecond),
			reduce.Round(time.Millisecond), merge.Round(time.Millisecond))
	}

	if run.Error != "" {
		fmt.Fprintf(w, "\nError: %s\n", run.Error)
		return nil
	}
	if run.Status != ledger.RunStatusCompleted {
		return nil
	}

	fmt.Fprintln(w)
	return toptokens.Render(w, &toptokens.Result{Entries: run.Results, Approximate: run.Approximate})
}
