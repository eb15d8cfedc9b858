package common

import (
	"fmt"
	"strconv"
	"strings"
)

// AVNDecimals is the number of decimals of AVN (satoshis)
const AVNDecimals = 8

// SatoshisToAVN converts satoshis to AVN string without float precision loss
func SatoshisToAVN(sat uint64) string {
	return formatWithDecimals(sat, AVNDecimals)
}

// AVNToSatoshis converts AVN string to satoshis without float precision loss
func AVNToSatoshis(avn string) (uint64, error) {
	return parseWithDecimals(avn, AVNDecimals)
}

// formatWithDecimals converts integer to decimal string by inserting decimal point
// Example: formatWithDecimals(24981836, 8) = "0.24981836"
func formatWithDecimals(value uint64, decimals int) string {
	s := strconv.FormatUint(value, 10)

	// Pad with leading zeros if needed
	for len(s) <= decimals {
		s = "0" + s
	}

	pos := len(s) - decimals
	return s[:pos] + "." + s[pos:]
}

// parseWithDecimals converts decimal string to integer by removing decimal point.
// Unlike display rounding, extra fractional digits are rejected: an amount
// that cannot be represented exactly is not a valid ledger value.
// Example: parseWithDecimals("0.24981836", 8) = 24981836
func parseWithDecimals(s string, decimals int) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, fmt.Errorf("signed amount %q", s)
	}

	parts := strings.Split(s, ".")

	if len(parts) == 1 {
		// No decimal point - multiply by 10^decimals
		return strconv.ParseUint(parts[0]+strings.Repeat("0", decimals), 10, 64)
	}

	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid decimal format")
	}

	whole := parts[0]
	frac := parts[1]
	if whole == "" {
		whole = "0"
	}

	if len(frac) > decimals {
		return 0, fmt.Errorf("too many decimals in %q (max %d)", s, decimals)
	}
	frac += strings.Repeat("0", decimals-len(frac))

	return strconv.ParseUint(whole+frac, 10, 64)
}
