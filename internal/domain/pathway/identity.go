package pathway

import "strings"

// NormalizeID strips every non-digit so identifiers recorded with spaces or
// dashes on different lists compare equal. An empty result never matches.
func NormalizeID(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SamePatient reports whether two raw identifiers refer to the same patient.
func SamePatient(a, b string) bool {
	na := NormalizeID(a)
	return na != "" && na == NormalizeID(b)
}
