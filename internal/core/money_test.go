package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"0", 0, true}, // zero allowed: discounts default to zero
		{"1.005", 101, true}, // half-up rounding
		{"1.004", 100, true},
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestParsePercentBasisPoints(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"18", 1800, true},
		{"18.5", 1850, true},
		{"0", 0, true},
		{"100", 10000, true},
		{"100.01", 0, false},
		{"-5", 0, false},
	}
	for _, tc := range cases {
		got, err := ParsePercentBasisPoints(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestFormatCents(t *testing.T) {
	if got := FormatCents(123456); got != "₹1234.56" {
		t.Fatalf("expected ₹1234.56, got %s", got)
	}
	if got := FormatCents(5); got != "₹0.05" {
		t.Fatalf("expected ₹0.05, got %s", got)
	}
	if got := (Money{Cents: 250}).Decimal(); got != "2.50" {
		t.Fatalf("expected 2.50, got %s", got)
	}
}
