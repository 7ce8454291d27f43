package policy

import (
	"strings"

	"github.com/ansiblesec/ansiblesec/internal/rules"
)

// ParseMode parses a file mode in octal (0644, 644, 0o644) or symbolic
// (u=rw,g=r,o=r or a+w) form. Templates and keywords such as preserve are
// reported as not parseable.
func ParseMode(s string) (uint32, bool) {
	t := strings.Trim(strings.TrimSpace(s), `"'`)
	if t == "" || strings.Contains(t, "{{") {
		return 0, false
	}
	if t[0] >= '0' && t[0] <= '9' {
		v, err := rules.ParseOctal(t)
		return v, err == nil
	}
	return parseSymbolic(t)
}

const (
	permRead  = 0o4
	permWrite = 0o2
	permExec  = 0o1
)

func parseSymbolic(s string) (uint32, bool) {
	var mode uint32
	for _, clause := range strings.Split(s, ",") {
		i := 0
		var who uint32
		for i < len(clause) && strings.IndexByte("ugoa", clause[i]) >= 0 {
			switch clause[i] {
			case 'u':
				who |= 0o4700
			case 'g':
				who |= 0o2070
			case 'o':
				who |= 0o1007
			case 'a':
				who |= 0o7777
			}
			i++
		}
		if who == 0 {
			who = 0o7777
		}
		if i >= len(clause) {
			return 0, false
		}
		for i < len(clause) {
			op := clause[i]
			if op != '+' && op != '-' && op != '=' {
				return 0, false
			}
			i++
			var perm, special uint32
			for i < len(clause) && strings.IndexByte("+-=", clause[i]) < 0 {
				switch clause[i] {
				case 'r':
					perm |= permRead
				case 'w':
					perm |= permWrite
				case 'x', 'X':
					perm |= permExec
				case 's':
					special |= 0o6000
				case 't':
					special |= 0o1000
				default:
					return 0, false
				}
				i++
			}
			bits := (perm*0o111 | special) & who
			switch op {
			case '+':
				mode |= bits
			case '-':
				mode &^= bits
			case '=':
				mode = mode&^(who&0o777) | bits
			}
		}
	}
	return mode, true
}
