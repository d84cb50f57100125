// Package ledger keeps a history of pipeline runs.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"pkg.jsn.cam/toptokens/pkg/toptokens"
)

var (
	ErrRunNotFound = errors.New("run not found")
	ErrInvalidRun  = errors.New("run has no id")
)

// RunStatus represents the current state of a run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunRecord is the ledger entry of one pipeline run.
type RunRecord struct {
	ID     string    `json:"id"`
	Status RunStatus `json:"status"`

	// Configuration
	InputPath       string                  `json:"input_path"`
	IntermediateDir string                  `json:"intermediate_dir"`
	OutputDir       string                  `json:"output_dir"`
	Hash            toptokens.HashAlgorithm `json:"hash"`
	Buckets         int                     `json:"buckets"`
	TopN            int                     `json:"top_n"`
	Exact           bool                    `json:"exact"`

	// Statistics
	Tokens           int64 `json:"tokens"`
	BlankLines       int64 `json:"blank_lines"`
	BytesRead        int64 `json:"bytes_read"`
	SkippedRecords   int64 `json:"skipped_records"`
	TruncatedBuckets int   `json:"truncated_buckets"`
	SplitBuckets     int   `json:"split_buckets"`

	// Results
	Results     toptokens.List `json:"results,omitempty"`
	Approximate bool           `json:"approximate"`
	Error       string         `json:"error,omitempty"`

	// Timestamps
	StartedAt            time.Time `json:"started_at"`
	PartitionCompletedAt time.Time `json:"partition_completed_at"`
	ReduceCompletedAt    time.Time `json:"reduce_completed_at"`
	CompletedAt          time.Time `json:"completed_at"`
}

// Durations returns the partition, reduce, merge and total durations of the
// run. Phases that have not finished report zero.
func (r *RunRecord) Durations() (partition, reduce, merge, total time.Duration) {
	if !r.PartitionCompletedAt.IsZero() {
		partition = r.PartitionCompletedAt.Sub(r.StartedAt)
	}
	if !r.ReduceCompletedAt.IsZero() && !r.PartitionCompletedAt.IsZero() {
		reduce = r.ReduceCompletedAt.Sub(r.PartitionCompletedAt)
	}
	if !r.CompletedAt.IsZero() {
		total = r.CompletedAt.Sub(r.StartedAt)
		if !r.ReduceCompletedAt.IsZero() {
			merge = r.CompletedAt.Sub(r.ReduceCompletedAt)
		}
	}
	return partition, reduce, merge, total
}

// Ledger persists run records.
type Ledger interface {
	SaveRun(run *RunRecord) error
	LoadRun(id string) (*RunRecord, error)
	// ListRuns returns every run, newest first.
	ListRuns() ([]*RunRecord, error)
	DeleteRun(id string) error
	Close() error
}

// Prune deletes all but the keep newest runs and returns how many it removed.
func Prune(l Ledger, keep int) (int, error) {
	runs, err := l.ListRuns()
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}

	removed := 0
	for i := keep; i < len(runs); i++ {
		if err := l.DeleteRun(runs[i].ID); err != nil {
			return removed, fmt.Errorf("delete run %s: %w", runs[i].ID, err)
		}
		removed++
	}
	return removed, nil
}

func sortRuns(runs []*RunRecord) {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})
}

func encodeJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return data, nil
}

func decodeJSON(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode JSON: %w", err)
	}
	return nil
}
