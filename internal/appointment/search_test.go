package appointment

import (
	"testing"
	"time"
)

func TestParseSearchDateForms(t *testing.T) {
	want := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		in string
		ok bool
	}{
		{"01/08/2025", true},
		{"1/8/2025", true},
		{"01-08-2025", true},
		{"1-8-2025", true},
		{"2025-08-01", true},
		{" 2025-08-01 ", true},
		{"Nguyen Van A", false},
		{"08/2025", false},
		{"", false},
	}

	for _, tt := range tests {
		got, ok := ParseSearchDate(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseSearchDate(%q) ok=%v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && !got.Equal(want) {
			t.Errorf("ParseSearchDate(%q) = %s, want %s", tt.in, got, want)
		}
	}
}

func TestParseSearchDateRejectsAmbiguousText(t *testing.T) {
	if _, ok := ParseSearchDate("tooth cleaning"); ok {
		t.Fatal("free text must not parse as a date")
	}
}
