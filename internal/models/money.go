package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Amounts travel through the API as decimal strings ("12.50") and are
// stored as numerics. Fee math happens on integer cents to avoid float
// drift; anything beyond two fraction digits is rejected, not rounded.

// ParseAmountCents converts a decimal amount string to cents.
func ParseAmountCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, fmt.Errorf("invalid amount: %s", s)
	}

	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if whole == "" || len(frac) > 2 {
		return 0, fmt.Errorf("invalid amount: %s", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	for _, r := range whole + frac {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid amount: %s", s)
		}
	}

	cents, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount: %s", s)
	}
	return cents, nil
}

// FormatCents renders cents back to a decimal string.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// PlatformFeeCents computes the platform fee from basis points, rounding
// half up so the platform never undercollects by more than half a cent.
func PlatformFeeCents(amountCents int64, feeBPS int) int64 {
	return (amountCents*int64(feeBPS) + 5000) / 10000
}
