package analysis

import (
	"sort"
)

// Ranked is one value with its number of occurrences.
type Ranked[T comparable] struct {
	Value T   `json:"value"`
	Count int `json:"count"`
}

// RankByCount counts occurrences and sorts by count descending. Ties go to
// the smaller value, so the first entry is the mode.
func RankByCount[T comparable](vals []T, less func(a, b T) bool) []Ranked[T] {
	counts := make(map[T]int, len(vals))
	for _, v := range vals {
		counts[v]++
	}
	out := make([]Ranked[T], 0, len(counts))
	for v, n := range counts {
		out = append(out, Ranked[T]{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return less(out[i].Value, out[j].Value)
	})
	return out
}

func mode[T comparable](vals []T, less func(a, b T) bool) (T, bool) {
	r := RankByCount(vals, less)
	if len(r) == 0 {
		var zero T
		return zero, false
	}
	return r[0].Value, true
}
