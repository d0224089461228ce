package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"labattend/internal/attendance"
)

// Headers is the column order shared by the CSV and PDF renderings.
var Headers = []string{"Date", "Student Name", "System #", "Check In", "Check Out", "Duration (mins)", "Status"}

// Row flattens a record into the export columns. Absent optional fields become empty strings.
func Row(r attendance.Record) []string {
	out := ""
	if r.CheckOutTime != nil {
		out = *r.CheckOutTime
	}
	duration := ""
	if r.DurationMinutes != nil {
		duration = strconv.Itoa(*r.DurationMinutes)
	}
	return []string{r.Date, r.StudentName, r.SystemNumber, r.CheckInTime, out, duration, string(r.Status)}
}

// ToCSV renders records in the given order with RFC 4180 quoting.
func ToCSV(records []attendance.Record) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, r := range records {
		if err := writer.Write(Row(r)); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename returns the download name for an export produced at t, e.g. attendance_report_2024-01-01.csv.
func Filename(t time.Time, ext string) string {
	return "attendance_report_" + t.Format(attendance.DateLayout) + "." + ext
}
