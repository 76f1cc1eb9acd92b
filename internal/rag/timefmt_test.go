package rag

import "testing"

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00"},
		{5, "0:05"},
		{65, "1:05"},
		{125, "2:05"},
		{599.9, "9:59"},
		{3599, "59:59"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
		{-12, "0:00"},
	}

	for _, c := range cases {
		got := FormatTimestamp(c.seconds)
		if got != c.want {
			t.Fatalf("FormatTimestamp(%v) = %q, want %q", c.seconds, got, c.want)
		}
	}
}
