package station

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	Letters      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Digits       = "0123456789"
	Alphanumeric = Digits + Letters
)

// NewCode returns one random character from each alphabet, in order.
func NewCode(alphabets ...string) string {
	out := make([]byte, 0, len(alphabets))
	for _, alphabet := range alphabets {
		if alphabet == "" {
			continue
		}
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			out = append(out, alphabet[0])
			continue
		}
		out = append(out, alphabet[n.Int64()])
	}
	return string(out)
}

// NewSessionCode returns a letter followed by a digit, e.g. "K7".
func NewSessionCode() string {
	return NewCode(Letters, Digits)
}

// UniqueCode draws two-character alphanumeric codes until taken reports false.
// After maxAttempts it falls back to a three-character code.
func UniqueCode(taken func(code string) bool) string {
	const maxAttempts = 64
	for i := 0; i < maxAttempts; i++ {
		code := NewCode(Alphanumeric, Alphanumeric)
		if !taken(code) {
			return code
		}
	}
	for {
		code := NewCode(Alphanumeric, Alphanumeric, Alphanumeric)
		if !taken(code) {
			return code
		}
	}
}

// NewRoster attaches a unique two-character code to every non-empty name.
func NewRoster(names []string) []Player {
	roster := make([]Player, 0, len(names))
	used := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		code := UniqueCode(func(c string) bool { return used[c] })
		used[code] = true
		roster = append(roster, Player{Code: code, FullName: name})
	}
	return roster
}

// PlayerByCode finds the roster entry carrying code.
func PlayerByCode(roster []Player, code string) (Player, bool) {
	for _, p := range roster {
		if p.Code == code {
			return p, true
		}
	}
	return Player{}, false
}
