package common

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// RandomBase36 returns n characters drawn uniformly from [0-9a-z].
func RandomBase36(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	max := big.NewInt(int64(len(base36)))
	for i := 0; i < n; i++ {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(base36[v.Int64()])
	}
	return b.String(), nil
}

// NewTicketID generates a public ticket slug of the form cs-xxxxx-xxxxx.
func NewTicketID() (string, error) {
	a, err := RandomBase36(5)
	if err != nil {
		return "", err
	}
	b, err := RandomBase36(5)
	if err != nil {
		return "", err
	}
	return TicketIDPrefix + "-" + a + "-" + b, nil
}

// IsTicketID reports whether s looks like a ticket ID: the prefix followed by
// two groups of one to five lowercase base36 characters. NewTicketID always
// emits full five-character groups.
func IsTicketID(s string) bool {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || parts[0] != TicketIDPrefix {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) == 0 || len(p) > 5 {
			return false
		}
		for i := 0; i < len(p); i++ {
			if !strings.ContainsRune(base36, rune(p[i])) {
				return false
			}
		}
	}
	return true
}
