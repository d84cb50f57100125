package toptokens

import "fmt"

// Entry is one (token, count) pair of a top-N list.
type Entry struct {
	Token string `json:"token"`
	Count int64  `json:"count"`
}

func (e Entry) String() string {
	return fmt.Sprintf("%s\t%d", e.Token, e.Count)
}

// List is an ordered top-N list: Count descending, ties broken by Token ascending.
type List []Entry

// Counts returns the list as a token -> count map.
func (l List) Counts() map[string]int64 {
	counts := make(map[string]int64, len(l))
	for _, e := range l {
		counts[e.Token] = e.Count
	}
	return counts
}

// Result is the output of a global merge.
type Result struct {
	Entries List `json:"entries"`

	// Approximate is true when Entries may be missing tokens: the merge asked
	// for more entries than the buckets kept after their local top-N cut, or
	// the artifacts carried no manifest to prove otherwise. Rerun in exact
	// mode, or reduce with a larger N, to rule that out.
	Approximate bool `json:"approximate"`
}
