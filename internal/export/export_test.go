package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labattend/internal/attendance"
)

func completed(name, system, in, out string, minutes int) attendance.Record {
	return attendance.Record{
		StudentName:     name,
		SystemNumber:    system,
		Date:            "2024-03-04",
		CheckInTime:     in,
		CheckOutTime:    &out,
		DurationMinutes: &minutes,
		Status:          attendance.StatusCompleted,
	}
}

func fixture() []attendance.Record {
	return []attendance.Record{
		completed("Alice", "5", "09:00", "10:30", 90),
		{StudentName: "Doe, Jane", SystemNumber: "12", Date: "2024-03-04", CheckInTime: "11:15", Status: attendance.StatusActive},
		completed(`Bob "B" Smith`, "3", "23:30", "00:15", 45),
		completed("Zero", "7", "14:00", "14:00", 0),
	}
}

func TestToCSVGolden(t *testing.T) {
	got, err := ToCSV(fixture())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "records_csv", got)
}

func TestToCSVEmpty(t *testing.T) {
	got, err := ToCSV(nil)
	require.NoError(t, err)
	assert.Equal(t, "Date,Student Name,System #,Check In,Check Out,Duration (mins),Status\n", string(got))
}

func TestRowAbsentFields(t *testing.T) {
	row := Row(attendance.Record{StudentName: "A", SystemNumber: "1", Date: "2024-03-04", CheckInTime: "09:00", Status: attendance.StatusActive})
	assert.Equal(t, []string{"2024-03-04", "A", "1", "09:00", "", "", "Active"}, row)
}

func TestFilename(t *testing.T) {
	ts := time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, "attendance_report_2024-03-04.csv", Filename(ts, "csv"))
	assert.Equal(t, "attendance_report_2024-03-04.pdf", Filename(ts, "pdf"))
}

func TestToPDF(t *testing.T) {
	got, err := ToPDF(fixture(), "Lab attendance")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(got, []byte("%PDF-")))
}
