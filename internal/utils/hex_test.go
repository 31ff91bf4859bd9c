package utils

import (
	"encoding/json"
	"reflect"
	"testing"
)

type SomeStruct struct {
	Name string    `json:"name"`
	Key  HexBinary `json:"key"`
}

func TestHexBinarySerialization(t *testing.T) {
	s1 := SomeStruct{Name: "foo", Key: HexBinary{0, 1, 2, 3, 0xfe, 0xff}}
	srzs1, err := json.Marshal(s1)
	if nil != err {
		t.Fatalf("Oops, failed Marshal, got error %v", err)
	}
	s2 := SomeStruct{}
	err = json.Unmarshal(srzs1, &s2)
	if nil != err {
		t.Fatalf("Oops, failed Unmarshal, got error %v", err)
	}
	if !reflect.DeepEqual(s1, s2) {
		t.Errorf("Oops, failed Unmarshal verif, %+v != %+v", s1, s2)
	}
}

func TestLeadingHexSpan(t *testing.T) {
	testcases := []struct {
		in   string
		span int
	}{
		{"3F0011AA", 8},
		{"3F0011AAzz trailing", 8},
		{"deadBEEF", 8},
		{"zz", 0},
		{"", 0},
	}
	for pos, tc := range testcases {
		span := LeadingHexSpan(tc.in)
		if span != tc.span {
			t.Errorf("#%d: got %d, expected %d", pos, span, tc.span)
		}
	}
}

func TestIsHexString(t *testing.T) {
	testcases := []struct {
		in string
		ok bool
	}{
		{"AABBCCDDEEFF00112233445566778899AABBCCDD", true},
		{"abcdef0123", true},
		{"", false},
		{"AABBCC-DD", false},
	}
	for pos, tc := range testcases {
		ok := IsHexString(tc.in)
		if ok != tc.ok {
			t.Errorf("#%d: got %v, expected %v", pos, ok, tc.ok)
		}
	}
}
