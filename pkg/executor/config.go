package executor

import (
	"fmt"
	"io"
	"log"
	"runtime"
	"time"

	"pkg.jsn.cam/toptokens/pkg/ledger"
	"pkg.jsn.cam/toptokens/pkg/toptokens"
)

// Defaults
const (
	DefaultBuckets         = 100
	DefaultTopN            = 10
	DefaultIntermediateDir = "./var/groups"
	DefaultOutputDir       = "./var/top"
	DefaultSubPartitions   = 16
	DefaultSubDepth        = 3
	DefaultMaxLineBytes    = 1 << 20
)

// Config holds pipeline configuration
type Config struct {
	RunID           string
	InputPath       string
	IntermediateDir string // bucket artifacts (group_NN.txt)
	OutputDir       string // top-N artifacts (top_group_NN.txt) and manifest
	Hash            toptokens.HashAlgorithm

	Buckets int // M
	TopN    int // N

	// Exact makes reducers emit their whole frequency table so the merge is
	// exact, at the cost of much larger top-N artifacts.
	Exact bool

	Parallelism int // concurrent bucket reducers; 0 means GOMAXPROCS

	// MaxBucketDistinct bounds the in-memory table of one reducer. A bucket
	// with more distinct tokens is split on disk into SubPartitions pieces,
	// up to SubDepth levels deep. 0 disables splitting.
	MaxBucketDistinct int
	SubPartitions     int
	SubDepth          int

	MaxLineBytes int
	Timeout      time.Duration // whole-pipeline deadline; 0 means none

	// CleanIntermediate removes bucket artifacts after a successful run.
	CleanIntermediate bool

	Logger   *log.Logger
	Progress io.Writer     // receives every byte read from the input
	Ledger   ledger.Ledger // optional run history
}

// WithDefaults returns a copy of c with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.Buckets == 0 {
		c.Buckets = DefaultBuckets
	}
	if c.TopN == 0 {
		c.TopN = DefaultTopN
	}
	if c.IntermediateDir == "" {
		c.IntermediateDir = DefaultIntermediateDir
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.Hash == "" {
		c.Hash = toptokens.DefaultHash
	}
	if c.Parallelism <= 0 {
		c.Parallelism = runtime.GOMAXPROCS(0)
	}
	if c.SubPartitions == 0 {
		c.SubPartitions = DefaultSubPartitions
	}
	if c.SubDepth == 0 {
		c.SubDepth = DefaultSubDepth
	}
	if c.MaxLineBytes == 0 {
		c.MaxLineBytes = DefaultMaxLineBytes
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	return c
}

// Validate checks a defaulted config.
func (c Config) Validate() error {
	if c.Buckets < 1 {
		return fmt.Errorf("%w: bucket count must be >= 1, got %d", toptokens.ErrInvalidConfig, c.Buckets)
	}
	if c.TopN < 1 {
		return fmt.Errorf("%w: top-N must be >= 1, got %d", toptokens.ErrInvalidConfig, c.TopN)
	}
	if c.MaxBucketDistinct < 0 {
		return fmt.Errorf("%w: max bucket distinct must be >= 0", toptokens.ErrInvalidConfig)
	}
	if c.MaxBucketDistinct > 0 && c.SubPartitions < 2 {
		return fmt.Errorf("%w: sub-partitions must be >= 2, got %d", toptokens.ErrInvalidConfig, c.SubPartitions)
	}
	if c.SubDepth < 0 {
		return fmt.Errorf("%w: sub-partition depth must be >= 0", toptokens.ErrInvalidConfig)
	}
	if c.MaxBucketDistinct > 0 {
		// The deepest split reads hash bits up to M * fanout^depth.
		if _, ok := toptokens.SplitDivisor(c.Buckets, c.SubPartitions, c.SubDepth+1); !ok {
			return fmt.Errorf("%w: %d buckets split %d ways %d levels deep exceeds the 64-bit hash",
				toptokens.ErrInvalidConfig, c.Buckets, c.SubPartitions, c.SubDepth)
		}
	}
	if _, err := toptokens.NewHasher(c.Hash); err != nil {
		return fmt.Errorf("%w: %w", toptokens.ErrInvalidConfig, err)
	}
	return nil
}

// prepare applies defaults and validates.
func (c Config) prepare() (Config, toptokens.Hasher, error) {
	c = c.WithDefaults()
	if err := c.Validate(); err != nil {
		return c, toptokens.Hasher{}, err
	}
	hasher, err := toptokens.NewHasher(c.Hash)
	return c, hasher, err
}

// cutoff is the N passed to top-N selection; exact mode keeps everything.
func (c Config) cutoff() int {
	if c.Exact {
		return 0
	}
	return c.TopN
}
