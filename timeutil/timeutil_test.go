package timeutil

import "testing"

func TestRoundTrip(t *testing.T) {
	cases := []int64{0, 1, 1700000000, 4294967295}
	for _, sec := range cases {
		s, err := FormatTimestamp(sec)
		if err != nil {
			t.Fatalf("FormatTimestamp(%d): %v", sec, err)
		}
		got, err := ParseTimestamp(s)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", s, err)
		}
		if got != sec {
			t.Fatalf("round trip mismatch: %d -> %q -> %d", sec, s, got)
		}
	}
}

func TestFormatNegativeFails(t *testing.T) {
	if _, err := FormatTimestamp(-1); err == nil {
		t.Fatal("expected error for negative timestamp")
	}
}

func TestParseShortStringFails(t *testing.T) {
	if _, err := ParseTimestamp("2024-01-01"); err == nil {
		t.Fatal("expected error for short timestamp string")
	}
}

func TestParseNonNumericFails(t *testing.T) {
	if _, err := ParseTimestamp("YYYY-01-01T00:00:00Z"); err == nil {
		t.Fatal("expected error for non-numeric timestamp fields")
	}
}
