package utils

import (
	"encoding/hex"
)

// HexBinary is a byte slice that (un)marshals as bare hex text.
// Certificate DER payloads render this way on JSON surfaces.
type HexBinary []byte

func (self *HexBinary) UnmarshalText(text []byte) error {
	var dst []byte
	hxsz := hex.DecodedLen(len(text))
	if cap([]byte(*self)) >= hxsz {
		dst = []byte(*self)[:0]
	} else {
		dst = make([]byte, 0, hxsz)
	}

	_, err := hex.AppendDecode(dst, text)
	if nil != err {
		return err
	}

	*self = HexBinary(dst)
	return nil
}

func (self HexBinary) MarshalText() ([]byte, error) {
	var dst []byte
	dst = hex.AppendEncode(dst, []byte(self))
	return dst, nil
}

// IsHexDigit reports whether c is an upper or lower case hex digit.
func IsHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// LeadingHexSpan returns the length of the run of hex digits at the
// start of s. Scanning stops at the first non-hex character.
func LeadingHexSpan(s string) int {
	var n int
	for n = 0; n < len(s); n++ {
		if !IsHexDigit(s[n]) {
			break
		}
	}
	return n
}

// IsHexString reports whether s is non-empty and made of hex digits only.
func IsHexString(s string) bool {
	return len(s) > 0 && LeadingHexSpan(s) == len(s)
}
