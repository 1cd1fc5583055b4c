package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseAddress reads a 7-bit address written as "0x42", "42h" or decimal.
// It does not reject reserved addresses; see ValidAddress.
func ParseAddress(s string) (uint8, error) {
	digits, base := s, 10
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		digits, base = s[2:], 16
	case strings.HasSuffix(s, "h"):
		digits, base = strings.TrimSuffix(s, "h"), 16
	}
	v, err := strconv.ParseUint(digits, base, 7)
	if err != nil {
		return 0, fmt.Errorf("bad address %q: %w", s, err)
	}
	return uint8(v), nil
}
