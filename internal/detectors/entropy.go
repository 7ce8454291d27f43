package detectors

import (
	"math"
	"unicode"
)

// Entropy returns the Shannon entropy of s in bits per character, computed
// over the empirical rune frequencies of s.
func Entropy(s string) float64 {
	if s == "" {
		return 0
	}
	count := map[rune]int{}
	n := 0
	for _, r := range s {
		count[r]++
		n++
	}
	H := 0.0
	for _, c := range count {
		p := float64(c) / float64(n)
		H += -p * math.Log2(p)
	}
	return H
}

// looksRandom filters out prose and identifiers: a candidate needs a digit or
// both upper and lower case letters.
func looksRandom(s string) bool {
	var digit, upper, lower bool
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		}
	}
	return digit || (upper && lower)
}
