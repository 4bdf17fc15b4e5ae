package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// RandomCode generates a random code of given length from charset.
func RandomCode(length int, charset string) string {
	b := make([]byte, length)
	for i := range b {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		b[i] = charset[n.Int64()]
	}
	return string(b)
}

// GenerateOrderCode returns a short, unambiguous upper-case order code.
func GenerateOrderCode() string {
	return RandomCode(5, "ABCDEFGHJKLMNPQRSTUVWXYZ3789")
}

// GenerateSecret returns an order secret derived from a fresh UUID.
func GenerateSecret() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
}

// FormatAmount renders an amount in minor units as a decimal with two
// fraction digits, e.g. 1000 -> "10.00".
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// ParseAmount parses "10", "10.5" or "10.50" into minor units.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	whole, frac, dot := strings.Cut(s, ".")
	if !digitsOnly(whole) || (dot && !digitsOnly(frac)) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has more than two decimals", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	v := w*100 + f
	if neg {
		v = -v
	}
	return v, nil
}

func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseUint safely converts a path parameter to uint.
func ParseUint(s string) (uint, bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(v), true
}
