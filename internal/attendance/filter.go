package attendance

import (
	"fmt"
	"sort"
	"strings"
)

// StatusFilter selects records by lifecycle state. The zero value matches everything.
type StatusFilter string

const (
	FilterAll       StatusFilter = "All"
	FilterActive    StatusFilter = "Active"
	FilterCompleted StatusFilter = "Completed"
)

// ParseStatusFilter accepts All/Active/Completed in any case; empty means All.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return FilterAll, nil
	case "active":
		return FilterActive, nil
	case "completed":
		return FilterCompleted, nil
	}
	return "", fmt.Errorf("%w: unknown status filter %q", ErrValidation, s)
}

// Query is a dashboard search.
type Query struct {
	Search string
	Status StatusFilter
}

// Filter returns the records matching q, newest first. Search matches a
// case-insensitive substring of the student name or a substring of the system number.
func Filter(records []Record, q Query) []Record {
	term := NormalizeName(q.Search)
	raw := strings.TrimSpace(q.Search)

	out := make([]Record, 0, len(records))
	for _, r := range records {
		if term != "" && !strings.Contains(NormalizeName(r.StudentName), term) && !strings.Contains(r.SystemNumber, raw) {
			continue
		}
		if q.Status != "" && q.Status != FilterAll && Status(q.Status) != r.Status {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out
}

// Recent returns at most n records, newest first.
func Recent(records []Record, n int) []Record {
	out := Filter(records, Query{})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
