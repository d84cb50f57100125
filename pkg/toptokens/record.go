package toptokens

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Artifact naming. Bucket artifacts are group_NN.txt; the top-N artifact of a
// bucket carries the same name behind TopPrefix so the two stay traceable.
const (
	BucketPrefix = "group_"
	TopPrefix    = "top_"
	ArtifactExt  = ".txt"
	ManifestName = "manifest.json"
)

// BucketWidth is the zero-padded width of bucket indexes for m buckets:
// two digits, more when m > 100.
func BucketWidth(m int) int {
	w := len(strconv.Itoa(m - 1))
	if w < 2 {
		w = 2
	}
	return w
}

// BucketFileName returns the bucket artifact name for id.
func BucketFileName(id, m int) string {
	return fmt.Sprintf("%s%0*d%s", BucketPrefix, BucketWidth(m), id, ArtifactExt)
}

// TopFileName returns the top-N artifact name for bucket id.
func TopFileName(id, m int) string {
	return TopPrefix + BucketFileName(id, m)
}

// ParseBucketFileName extracts the bucket id from a bucket artifact name.
func ParseBucketFileName(name string) (int, bool) {
	if !strings.HasPrefix(name, BucketPrefix) || !strings.HasSuffix(name, ArtifactExt) {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, BucketPrefix), ArtifactExt)
	if digits == "" {
		return 0, false
	}
	id, err := strconv.Atoi(digits)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// IsTopFileName reports whether name is a top-N artifact.
func IsTopFileName(name string) bool {
	_, ok := ParseBucketFileName(strings.TrimPrefix(name, TopPrefix))
	return ok && strings.HasPrefix(name, TopPrefix)
}

// ParseRecord parses one Token<TAB>Count line. The count is taken after the
// last tab, so tokens that contain tabs survive a round trip. Counts are plain
// decimal digits; a sign is rejected.
func ParseRecord(line string) (Entry, error) {
	line = strings.TrimSpace(line)
	idx := strings.LastIndexByte(line, '\t')
	if idx <= 0 {
		return Entry{}, fmt.Errorf("%w: %q", ErrMalformedRecord, line)
	}

	digits := line[idx+1:]
	if digits == "" || digits[0] < '0' || digits[0] > '9' {
		return Entry{}, fmt.Errorf("%w: bad count in %q", ErrMalformedRecord, line)
	}
	count, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || count < 1 {
		return Entry{}, fmt.Errorf("%w: bad count in %q", ErrMalformedRecord, line)
	}

	token := strings.TrimSpace(line[:idx])
	if token == "" {
		return Entry{}, fmt.Errorf("%w: empty token in %q", ErrMalformedRecord, line)
	}

	return Entry{Token: token, Count: count}, nil
}

// WriteList writes l as Token<TAB>Count lines.
func WriteList(w io.Writer, l List) error {
	bw := bufio.NewWriter(w)
	for _, e := range l {
		bw.WriteString(e.Token)
		bw.WriteByte('\t')
		bw.WriteString(strconv.FormatInt(e.Count, 10))
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
