package hsync

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseByteSize parses a size with an optional binary suffix: a bare number
// is bytes, and K, M, G (case-insensitive, optional trailing B) multiply by
// 1024, 1024^2 and 1024^3. Used for --bwlimit and --block-size.
func ParseByteSize(s string) (int64, error) {
	in := strings.TrimSpace(s)
	if in == "" {
		return 0, fmt.Errorf("empty size")
	}
	upper := strings.ToUpper(in)
	mult := int64(1)
	switch {
	case strings.HasSuffix(upper, "KB"), strings.HasSuffix(upper, "K"):
		mult = 1 << 10
	case strings.HasSuffix(upper, "MB"), strings.HasSuffix(upper, "M"):
		mult = 1 << 20
	case strings.HasSuffix(upper, "GB"), strings.HasSuffix(upper, "G"):
		mult = 1 << 30
	}
	num := upper
	if mult != 1 {
		num = strings.TrimRight(upper, "KMGB")
	} else {
		num = strings.TrimSuffix(upper, "B")
	}
	num = strings.TrimSpace(num)
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("invalid size %q: must not be negative", s)
	}
	return int64(v * float64(mult)), nil
}
