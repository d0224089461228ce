package attendance

import (
	"strings"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// NormalizeName is the identity key for a student: trimmed and case-folded.
func NormalizeName(name string) string {
	return folder.String(strings.TrimSpace(name))
}

// NormalizeSystem trims a workstation identifier. Systems compare by exact equality after trimming.
func NormalizeSystem(system string) string {
	return strings.TrimSpace(system)
}

func sameStudent(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}
