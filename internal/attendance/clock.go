package attendance

import (
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	minutesPerDay = 24 * 60
)

// ParseClock parses a 24-hour HH:mm wall-clock time into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return 0, fmt.Errorf("time %q must be HH:mm: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// SessionMinutes returns the minutes between two HH:mm clock times. A check-out earlier
// than the check-in is taken to fall on the next day.
func SessionMinutes(checkIn, checkOut string) (int, error) {
	in, err := ParseClock(checkIn)
	if err != nil {
		return 0, err
	}
	out, err := ParseClock(checkOut)
	if err != nil {
		return 0, err
	}
	d := out - in
	if d < 0 {
		d += minutesPerDay
	}
	return d, nil
}

// FormatDuration renders minutes as "1h 30m".
func FormatDuration(minutes int) string {
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func validDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
