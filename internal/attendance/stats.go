package attendance

import "math"

// Stats is the dashboard aggregate over a record set.
type Stats struct {
	TotalSessions      int `json:"totalSessions"`
	ActiveNow          int `json:"activeNow"`
	AvgDurationMinutes int `json:"avgDurationMinutes"`
	UniqueStudents     int `json:"uniqueStudents"`
}

// ComputeStats aggregates records. The average covers completed sessions only and is 0 when there are none.
func ComputeStats(records []Record) Stats {
	var (
		stats     = Stats{TotalSessions: len(records)}
		completed int
		total     int
		students  = make(map[string]struct{})
	)
	for _, r := range records {
		students[NormalizeName(r.StudentName)] = struct{}{}
		switch r.Status {
		case StatusActive:
			stats.ActiveNow++
		case StatusCompleted:
			completed++
			if r.DurationMinutes != nil {
				total += *r.DurationMinutes
			}
		}
	}
	if completed > 0 {
		stats.AvgDurationMinutes = int(math.Round(float64(total) / float64(completed)))
	}
	stats.UniqueStudents = len(students)
	return stats
}
