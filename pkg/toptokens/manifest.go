package toptokens

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/mod/semver"
)

// FormatVersion is the version of the on-disk artifact layout written by this
// build. Readers accept any artifact with the same major version.
const FormatVersion = "v1.0.0"

// Manifest describes how a directory of top-N artifacts was produced.
type Manifest struct {
	CreatedAt     time.Time     `json:"created_at"`
	FormatVersion string        `json:"format_version"`
	RunID         string        `json:"run_id"`
	Hash          HashAlgorithm `json:"hash"`
	Truncated     []int         `json:"truncated,omitempty"` // buckets cut to their local top-N
	Buckets       int           `json:"buckets"`
	TopN          int           `json:"top_n"`
	Exact         bool          `json:"exact"`
}

// Approximate reports whether merging these artifacts into a top-n list can
// miss a token. Every token lives in exactly one bucket, so a bucket's local
// top-TopN already holds every token of the global top-TopN with its true
// count. Only a merge asking for more than TopN entries can reach past a
// truncated bucket's cut.
func (m *Manifest) Approximate(n int) bool {
	return !m.Exact && len(m.Truncated) > 0 && n > m.TopN
}

// WriteManifest writes m to dir/manifest.json, replacing any previous one.
func WriteManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	path := filepath.Join(dir, ManifestName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputUnavailable, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrOutputUnavailable, err)
	}
	return nil
}

// ReadManifest loads dir/manifest.json. It returns ErrMissingManifest when the
// directory has none.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrMissingManifest
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputUnavailable, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}

// IsCompatibleVersion checks if an artifact format version can be read by a
// binary writing binaryVersion. Major versions must match; minor and patch may
// differ.
func IsCompatibleVersion(artifactVersion, binaryVersion string) (bool, error) {
	if !semver.IsValid(artifactVersion) {
		return false, fmt.Errorf("invalid artifact version: %s", artifactVersion)
	}
	if !semver.IsValid(binaryVersion) {
		return false, fmt.Errorf("invalid binary version: %s", binaryVersion)
	}

	return semver.Major(artifactVersion) == semver.Major(binaryVersion), nil
}

// CheckCompatible returns ErrIncompatibleFormat when m was written by an
// incompatible layout version.
func (m *Manifest) CheckCompatible() error {
	ok, err := IsCompatibleVersion(m.FormatVersion, FormatVersion)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIncompatibleFormat, err)
	}
	if !ok {
		return fmt.Errorf("%w: artifacts are %s, this build reads %s.x.x",
			ErrIncompatibleFormat, m.FormatVersion, semver.Major(FormatVersion))
	}
	return nil
}
