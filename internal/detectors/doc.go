// Package detectors finds hardcoded secrets in file content, line by line,
// using named regular expressions plus a Shannon entropy check for random
// looking tokens that no pattern names.
package detectors
