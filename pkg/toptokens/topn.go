package toptokens

import (
	"cmp"
	"container/heap"
	"slices"
)

// Compare orders entries by Count descending, then Token ascending (byte-wise).
// It is the single tie-break rule used by every stage, so equal counts always
// come out in the same order.
func Compare(a, b Entry) int {
	if c := cmp.Compare(b.Count, a.Count); c != 0 {
		return c
	}
	return cmp.Compare(a.Token, b.Token)
}

// SortList sorts l in place by Compare.
func SortList(l List) {
	slices.SortFunc(l, Compare)
}

// TopN returns the n highest-ranked entries of counts. n <= 0 returns every
// entry, sorted.
//
// When a cut is needed it keeps a bounded heap of size n, so the cost is
// O(B log n) for B distinct tokens rather than a full sort.
func TopN(counts map[string]int64, n int) List {
	if n <= 0 || n >= len(counts) {
		out := make(List, 0, len(counts))
		for token, count := range counts {
			out = append(out, Entry{Token: token, Count: count})
		}
		SortList(out)
		return out
	}

	h := make(rankHeap, 0, n)
	for token, count := range counts {
		e := Entry{Token: token, Count: count}
		if len(h) < n {
			heap.Push(&h, e)
			continue
		}
		// Root is the lowest-ranked kept entry; replace it only when e beats it.
		if Compare(e, h[0]) < 0 {
			h[0] = e
			heap.Fix(&h, 0)
		}
	}

	out := make(List, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(Entry)
	}
	return out
}

// rankHeap is a min-heap by rank: the root is the entry that would be dropped
// first.
type rankHeap []Entry

func (h rankHeap) Len() int           { return len(h) }
func (h rankHeap) Less(i, j int) bool { return Compare(h[i], h[j]) > 0 }
func (h rankHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *rankHeap) Push(x any) {
	*h = append(*h, x.(Entry))
}

func (h *rankHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// MergeLists sums counts per token across lists and returns the top n of the
// union. Lists over disjoint token sets merge exactly; lists that were each
// cut to a local top-N merge approximately.
func MergeLists(lists []List, n int) List {
	acc := make(map[string]int64)
	for _, l := range lists {
		for _, e := range l {
			acc[e.Token] += e.Count
		}
	}
	return TopN(acc, n)
}
