package assuan

import (
	"bytes"
	"testing"
)

func TestSplitLine(t *testing.T) {
	testcases := []struct {
		line    string
		keyword string
		rest    string
	}{
		{"KEYINFO grip", "KEYINFO", "grip"},
		{"PROGRESS learncard C 0 0", "PROGRESS", "learncard C 0 0"},
		{"SERIALNO", "SERIALNO", ""},
		{"A   spaced   out", "A", "spaced   out"},
		{"", "", ""},
	}
	for pos, tc := range testcases {
		keyword, rest := SplitLine(tc.line)
		if keyword != tc.keyword || rest != tc.rest {
			t.Errorf("#%d: got (%q, %q), expected (%q, %q)", pos, keyword, rest, tc.keyword, tc.rest)
		}
	}
}

func TestHasKeyword(t *testing.T) {
	testcases := []struct {
		line    string
		keyword string
		rest    string
		match   bool
	}{
		{"SERIALNO D2760001240102", "SERIALNO", "D2760001240102", true},
		{"SERIALNO", "SERIALNO", "", true},
		{"SERIALNOX", "SERIALNO", "", false},
		{"KEYPAIRINFO A B", "SERIALNO", "", false},
		{"SERIALNO   padded", "SERIALNO", "padded", true},
	}
	for pos, tc := range testcases {
		rest, match := HasKeyword(tc.line, tc.keyword)
		if rest != tc.rest || match != tc.match {
			t.Errorf("#%d: got (%q, %v), expected (%q, %v)", pos, rest, match, tc.rest, tc.match)
		}
	}
}

func TestEscapeDataRoundTrip(t *testing.T) {
	raw := []byte("plain %25 then\r\nbinary \x00\xFF % tail")

	escaped := escapeData(nil, raw)
	if bytes.ContainsAny(escaped, "\r\n") {
		t.Fatal("escaped data still holds line breaks")
	}
	if len(escaped) != escapedLen(raw) {
		t.Fatalf("escapedLen announced %d, got %d", escapedLen(raw), len(escaped))
	}

	back, err := unescapeData(string(escaped))
	if nil != err {
		t.Fatalf("failed unescapeData, got error %v", err)
	}
	if !bytes.Equal(back, raw) {
		t.Fatalf("round trip mismatch, got %q", back)
	}
}

func TestUnescapeDataInvalid(t *testing.T) {
	for pos, s := range []string{"trailing %2", "bad %zz escape", "%"} {
		_, err := unescapeData(s)
		if nil == err {
			t.Errorf("#%d: unescapeData accepted %q", pos, s)
		}
	}
}

func TestPercentPlusEscape(t *testing.T) {
	testcases := []struct {
		in  string
		out string
	}{
		{"Please enter the passphrase", "Please+enter+the+passphrase"},
		{"100% sure + more", "100%25+sure+%2B+more"},
		{"tab\there", "tab%09here"},
		{"del\x7F", "del%7F"},
		{"", ""},
	}
	for pos, tc := range testcases {
		out := PercentPlusEscape(tc.in)
		if out != tc.out {
			t.Errorf("#%d: got %q, expected %q", pos, out, tc.out)
		}
	}
}
