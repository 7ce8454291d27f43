package detectors

import "strings"

// Redact masks a matched secret, keeping a few characters at each end so the
// finding stays recognisable. Short values are fully masked.
func Redact(s string) string {
	r := []rune(s)
	n := len(r)
	if n <= 8 {
		return strings.Repeat("*", 8)
	}
	keep := 4
	if n < 16 {
		keep = 2
	}
	return string(r[:keep]) + "****" + string(r[n-keep:])
}
