package toptokens

import (
	"bufio"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// Render writes a 1-indexed ranking, one "rank. token: count times" line per
// entry, followed by a notice when the result is approximate.
func Render(w io.Writer, r *Result) error {
	bw := bufio.NewWriter(w)

	if len(r.Entries) == 0 {
		fmt.Fprintln(bw, "No tokens found")
	} else {
		fmt.Fprintf(bw, "Top %d tokens:\n", len(r.Entries))
		for i, e := range r.Entries {
			fmt.Fprintf(bw, "%d. %s: %s times\n", i+1, e.Token, humanize.Comma(e.Count))
		}
	}

	if r.Approximate {
		fmt.Fprintln(bw)
		fmt.Fprintln(bw, "Note: this ranking is approximate. Buckets were cut to their local top-N")
		fmt.Fprintln(bw, "before merging, so tokens below that cut can be missing from the list.")
		fmt.Fprintln(bw, "Reduce with -exact, or with -n at least as large as the merge, for an exact ranking.")
	}

	return bw.Flush()
}
