package toptokens

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions
var (
	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrUnknownHash   = errors.New("unknown hash algorithm")

	// I/O errors
	ErrInputUnavailable  = errors.New("input unavailable")
	ErrOutputUnavailable = errors.New("output unavailable")

	// Intermediate artifact errors
	ErrMalformedRecord    = errors.New("malformed intermediate record")
	ErrIncompatibleFormat = errors.New("incompatible artifact format")
	ErrMissingManifest    = errors.New("manifest not found")
)

// Stage names used in StageError.
const (
	StagePartition = "partition"
	StageReduce    = "reduce"
	StageMerge     = "merge"
)

// StageError reports which pipeline stage and artifact a fatal error came from.
type StageError struct {
	Stage    string
	Artifact string
	Err      error
}

func (e *StageError) Error() string {
	if e.Artifact == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Artifact, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with stage and artifact context. A nil err stays nil.
func NewStageError(stage, artifact string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Artifact: artifact, Err: err}
}
