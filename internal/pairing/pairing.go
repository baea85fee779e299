// Package pairing issues the short one-shot codes the agent UI exchanges for
// its session token.
package pairing

import (
	crand "crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	"github.com/cockroachdb/errors"
)

// Alphabet skips 0 O I 1 so codes survive being read aloud.
const (
	Alphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength = 8
)

// GeneratePairCode returns a random CodeLength code drawn from Alphabet.
func GeneratePairCode() (string, error) {
	b := make([]byte, CodeLength)
	if _, err := crand.Read(b); err != nil {
		return "", errors.Wrap(err, "pair code entropy")
	}
	for i := range b {
		b[i] = Alphabet[int(b[i])%len(Alphabet)]
	}
	return string(b), nil
}

// HashCode is the form a code is kept in while it waits to be exchanged.
// Input is trimmed and upper-cased so "abcd efgh " style typing still matches.
func HashCode(code string) []byte {
	h := sha256.Sum256([]byte(strings.ToUpper(strings.TrimSpace(code))))
	return h[:]
}

// Matches compares code against a stored hash in constant time.
func Matches(hash []byte, code string) bool {
	if len(hash) != sha256.Size {
		return false
	}
	return subtle.ConstantTimeCompare(hash, HashCode(code)) == 1
}
