package detectors

import "strings"

const markerPrefix = "ansiblesec:"

// suppressor tracks inline suppression comments across lines:
//
//	# ansiblesec:ignore              skip this line
//	# ansiblesec:ignore-next-line    skip the following line
//	# ansiblesec:ignore-start / ansiblesec:ignore-end   skip a region
//
// A space after the colon is tolerated.
type suppressor struct {
	region   bool
	skipNext bool
}

func hasMarker(line, name string) bool {
	return strings.Contains(line, markerPrefix+name) || strings.Contains(line, markerPrefix+" "+name)
}

// skip reports whether secret detection should skip line and advances state.
func (s *suppressor) skip(line string) bool {
	if !strings.Contains(line, "ansiblesec:") {
		if s.region {
			return true
		}
		if s.skipNext {
			s.skipNext = false
			return true
		}
		return false
	}
	switch {
	case hasMarker(line, "ignore-start"):
		s.region = true
		return true
	case hasMarker(line, "ignore-end"):
		s.region = false
		return true
	case s.region:
		return true
	case hasMarker(line, "ignore-next-line"):
		s.skipNext = true
		return true
	case s.skipNext:
		s.skipNext = false
		return true
	}
	return hasMarker(line, "ignore")
}
