// Package sexp validates and builds canonical S-expressions, the
// binary length-prefixed parenthesized encoding used for key material,
// signatures and cipher payloads on the agent wire.
//
// The package never interprets the expressions it handles beyond their
// structure: buffers may hold private key material, so validation works
// in place and no intermediate tree is built.
package sexp

import (
	"fmt"
)

// maxAtomLen bounds a single length prefix. Anything larger than this
// is a corrupt buffer long before it is an oversized key.
const maxAtomLen = 1 << 30

// CanonLen returns the exact byte length of the canonical S-expression
// at the start of buf. It errors unless buf begins with '(' and decodes
// as nested length-prefixed atoms with balanced parentheses fully
// contained in buf.
func CanonLen(buf []byte) (int, error) {
	if 0 == len(buf) {
		return 0, newError("empty buffer")
	}
	if '(' != buf[0] {
		return 0, newError("buffer does not start with '('")
	}

	depth := 0
	pos := 0
	for {
		if pos >= len(buf) {
			return 0, newError("truncated expression at offset %d", pos)
		}
		c := buf[pos]
		switch {
		case '(' == c:
			depth++
			pos++
		case ')' == c:
			depth--
			if depth < 0 {
				return 0, newError("unbalanced ')' at offset %d", pos)
			}
			pos++
			if 0 == depth {
				return pos, nil
			}
		case c >= '0' && c <= '9':
			n, adv, err := parseLenPrefix(buf[pos:])
			if nil != err {
				return 0, wrapError(err, "bad length prefix at offset %d", pos)
			}
			pos += adv
			if n > len(buf)-pos {
				return 0, newError("atom of %d bytes overruns buffer at offset %d", n, pos)
			}
			pos += n
		default:
			return 0, newError("unexpected byte 0x%02X at offset %d", c, pos)
		}
	}
}

// WrapRawSignature builds the canonical S-expression
//
//	(7:sig-val(<algo>(1:s<sig>)))
//
// used to normalize a raw signature, e.g. one returned by a smartcard,
// into the shape the agent itself produces. The wrapper is well formed
// for an empty sig (length prefix 0).
func WrapRawSignature(algo string, sig []byte) []byte {
	buf := make([]byte, 0, len(sig)+len(algo)+32)
	buf = append(buf, "(7:sig-val("...)
	buf = append(buf, fmt.Sprintf("%d:%s", len(algo), algo)...)
	buf = append(buf, "(1:s"...)
	buf = append(buf, fmt.Sprintf("%d:", len(sig))...)
	buf = append(buf, sig...)
	buf = append(buf, ")))"...)
	return buf
}

// UnwrapValue extracts the payload of a decrypt result. Two shapes are
// accepted: the tagged form "(5:value<N>:<data>)" and, for peers
// predating the tag, the bare form "<N>:<data>". The returned slice
// aliases buf; callers owning confidential data must copy and wipe.
//
// An inner length inconsistent with the remaining buffer is an
// InvalidError, never a silent truncation.
func UnwrapValue(buf []byte) ([]byte, error) {
	if 0 == len(buf) {
		return nil, newError("empty buffer")
	}

	rest := buf
	wrapped := '(' == buf[0]
	if wrapped {
		const tag = "(5:value"
		if len(buf) < len(tag)+4 || string(buf[:len(tag)]) != tag {
			return nil, newError("missing value tag")
		}
		rest = buf[len(tag):]
	}

	n, adv, err := parseLenPrefix(rest)
	if nil != err {
		return nil, wrapError(err, "bad payload length")
	}
	if 0 == n {
		return nil, newError("zero payload length")
	}
	rest = rest[adv:]

	tail := len(rest) - n
	if wrapped {
		tail-- // closing parenthesis of the wrapper
	}
	if tail < 0 {
		return nil, newError("payload length %d inconsistent with buffer", n)
	}
	if wrapped && ')' != rest[n] {
		return nil, newError("missing wrapper terminator")
	}

	return rest[:n], nil
}

// parseLenPrefix decodes the "<decimal>:" prefix at the start of buf
// and returns the announced length plus the number of bytes consumed.
func parseLenPrefix(buf []byte) (n int, adv int, err error) {
	var i int
	for i = 0; i < len(buf) && buf[i] >= '0' && buf[i] <= '9'; i++ {
		n = n*10 + int(buf[i]-'0')
		if n > maxAtomLen {
			return 0, 0, newError("length prefix too large")
		}
	}
	if 0 == i {
		return 0, 0, newError("missing length digits")
	}
	if i > 1 && '0' == buf[0] {
		return 0, 0, newError("leading zero in length prefix")
	}
	if i >= len(buf) || ':' != buf[i] {
		return 0, 0, newError("length prefix not followed by ':'")
	}
	return n, i + 1, nil
}
