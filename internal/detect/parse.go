package detect

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// dateLayouts lists the accepted date shapes. Day-first forms come before
// month-first ones because Spanish exports are day-first; an ambiguous
// value such as 03/04/2024 therefore resolves to April 3rd.
var dateLayouts = []string{
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2006-01-02",
	"2006/01/02",
	"02/01/06",
	"02-01-06",
	"01/02/2006",
	"2 Jan 2006",
	"Jan 2, 2006",
}

// ParseDate parses a statement date cell, trying each accepted layout in
// order. Timestamps with a time component are truncated to the date.
func ParseDate(v string) (time.Time, error) {
	s := strings.TrimSpace(v)
	if s == "" {
		return time.Time{}, fmt.Errorf("ParseDate: empty value")
	}
	if idx := strings.IndexAny(s, " T"); idx > 0 && strings.ContainsAny(s[idx:], ":") {
		s = s[:idx]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("ParseDate: unrecognized date %q", v)
}

// ParseAmount parses a monetary cell, accepting both decimal conventions:
// "1,234.56", "1.234,56", "-23.45" and "1 234,56" all parse. When both
// separators appear, the rightmost one is the decimal mark. Currency
// symbols and surrounding whitespace are stripped.
func ParseAmount(v string) (float64, error) {
	s := strings.TrimSpace(v)
	if s == "" {
		return 0, fmt.Errorf("ParseAmount: empty value")
	}

	s = strings.Map(func(r rune) rune {
		switch r {
		case '€', '$', '£', ' ', ' ':
			return -1
		}
		return r
	}, s)

	// Accounting negatives: (23.45) means -23.45.
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("ParseAmount: unrecognized amount %q", v)
	}
	if neg {
		f = -f
	}
	return f, nil
}
