package assuan

import (
	"strings"
)

// MaxLineLen is the protocol bound on one line, terminating LF
// excluded. Constructing a longer line is an error raised before I/O.
const MaxLineLen = 1000

// SplitLine cuts a protocol line into its leading keyword and the
// remainder, with separating spaces removed. Status and inquiry
// parsing work on (keyword, rest) pairs, never on raw lines.
func SplitLine(line string) (keyword, rest string) {
	var i int
	for i = 0; i < len(line) && ' ' != line[i]; i++ {
	}
	keyword = line[:i]
	for i < len(line) && ' ' == line[i] {
		i++
	}
	return keyword, line[i:]
}

// HasKeyword reports whether line starts with keyword followed by a
// space or end of line, returning the remainder on match.
func HasKeyword(line, keyword string) (string, bool) {
	if !strings.HasPrefix(line, keyword) {
		return "", false
	}
	rest := line[len(keyword):]
	if "" == rest {
		return "", true
	}
	if ' ' != rest[0] {
		return "", false
	}
	for len(rest) > 0 && ' ' == rest[0] {
		rest = rest[1:]
	}
	return rest, true
}

const hexDigits = "0123456789ABCDEF"

// escapeData renders raw bytes for a D line: '%', CR and LF become
// %XX sequences, everything else passes through.
func escapeData(dst []byte, b []byte) []byte {
	for _, c := range b {
		switch c {
		case '%', '\r', '\n':
			dst = append(dst, '%', hexDigits[c>>4], hexDigits[c&0x0F])
		default:
			dst = append(dst, c)
		}
	}
	return dst
}

// escapedLen returns the size of b once escaped for a D line.
func escapedLen(b []byte) int {
	n := len(b)
	for _, c := range b {
		if '%' == c || '\r' == c || '\n' == c {
			n += 2
		}
	}
	return n
}

// unescapeData decodes the %XX sequences of a received D line.
func unescapeData(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if '%' != c {
			out = append(out, c)
			continue
		}
		if i+2 >= len(s) {
			return nil, newFlagError(ProtocolError, "truncated %% escape in data line")
		}
		hi := hexVal(s[i+1])
		lo := hexVal(s[i+2])
		if hi < 0 || lo < 0 {
			return nil, newFlagError(ProtocolError, "bad %% escape in data line")
		}
		out = append(out, byte(hi<<4|lo))
		i += 2
	}
	return out, nil
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

// PercentPlusEscape renders free text for use as a single command
// argument: spaces become '+', while '%', '+' and control characters
// become %XX sequences.
func PercentPlusEscape(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case ' ' == c:
			sb.WriteByte('+')
		case '%' == c || '+' == c || c < 0x20 || 0x7F == c:
			sb.WriteByte('%')
			sb.WriteByte(hexDigits[c>>4])
			sb.WriteByte(hexDigits[c&0x0F])
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
