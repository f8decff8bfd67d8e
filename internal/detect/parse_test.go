package detect

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"15/03/2024", "2024-03-15"},
		{"15-03-2024", "2024-03-15"},
		{"15.03.2024", "2024-03-15"},
		{"2024-03-15", "2024-03-15"},
		{"03/04/2024", "2024-04-03"}, // day-first wins the ambiguous case
		{"15/03/24", "2024-03-15"},
		{"2024-03-15 10:30:00", "2024-03-15"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if err != nil {
				t.Fatalf("ParseDate(%q) error = %v", tt.in, err)
			}
			if got.Format(time.DateOnly) != tt.want {
				t.Errorf("ParseDate(%q) = %s, want %s", tt.in, got.Format(time.DateOnly), tt.want)
			}
		})
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, in := range []string{"", "no fecha", "99/99/2024", "mercadona"} {
		if _, err := ParseDate(in); err == nil {
			t.Errorf("ParseDate(%q) error = nil, want error", in)
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"-23.45", -23.45},
		{"-23,45", -23.45},
		{"1.234,56", 1234.56},
		{"1,234.56", 1234.56},
		{"1500", 1500},
		{"1 234,56", 1234.56},
		{"-55,20 €", -55.20},
		{"(23.45)", -23.45},
		{"1.234.567", 1234567},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if err != nil {
				t.Fatalf("ParseAmount(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseAmount(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, in := range []string{"", "nan", "abc", "--5", "12,34,56.78.90"} {
		if _, err := ParseAmount(in); err == nil {
			t.Errorf("ParseAmount(%q) error = nil, want error", in)
		}
	}
}
