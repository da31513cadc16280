package generic

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUT CLAMPING - "never crash the sheet"
// =============================================================================
//
// Cell input is free text. It is cleaned, parsed leniently and clamped to
// zero. Malformed input is never an error: it becomes 0.

// cleanNumeric drops whitespace and every rune that cannot be part of a
// number, then treats the first comma as the decimal separator.
func cleanNumeric(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case unicode.IsSpace(r):
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Replace(b.String(), ",", ".", 1)
}

// leadingNumber returns the longest prefix of s that reads as a number:
// optional minus, digits, and (when fraction is true) one dot with digits.
func leadingNumber(s string, fraction bool) string {
	end := 0
	if end < len(s) && s[end] == '-' {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if fraction && end < len(s) && s[end] == '.' {
		frac := end + 1
		for frac < len(s) && s[frac] >= '0' && s[frac] <= '9' {
			frac++
		}
		if frac > end+1 || end > digits {
			end = frac
		}
	}
	n := s[:end]
	if n == "" || n == "-" || n == "." || n == "-." {
		return ""
	}
	if strings.HasPrefix(n, "-.") {
		return "-0" + n[1:]
	}
	if strings.HasPrefix(n, ".") {
		return "0" + n
	}
	return n
}

// ParseCount reads a non-negative integer counter. Fractions are truncated,
// negatives and garbage become 0.
func ParseCount(raw string) int {
	n := leadingNumber(cleanNumeric(raw), false)
	if n == "" {
		return 0
	}
	d, err := decimal.NewFromString(n)
	if err != nil || !d.IsPositive() {
		return 0
	}
	return int(d.IntPart())
}

// ParseAmount reads a non-negative money amount.
func ParseAmount(raw string) decimal.Decimal {
	n := strings.TrimSuffix(leadingNumber(cleanNumeric(raw), true), ".")
	if n == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(n)
	if err != nil || !d.IsPositive() {
		return decimal.Zero
	}
	return d
}

// ClampCount clamps a counter to zero.
func ClampCount(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// ClampAmount clamps an amount to zero.
func ClampAmount(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
