package debug

import (
	"fmt"
)

// formatNumber formats a number with thousands separators
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}

	str := fmt.Sprintf("%d", n)
	result := ""

	for i, digit := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(digit)
	}

	return result
}

// formatSignedNumber formats a number with sign and thousands separators
func formatSignedNumber(n int64) string {
	if n > 0 {
		return "+" + formatNumber(n)
	}
	return formatNumber(n)
}
