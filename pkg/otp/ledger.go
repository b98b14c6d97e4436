// Package otp keeps one-time admin provisioning codes keyed by email.
package otp

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// DefaultTTL is how long a pending code stays valid.
const DefaultTTL = 10 * time.Minute

var errEmailRequired = errors.New("otp email is required")

// Ledger stores at most one pending code per email.
//
// Put overwrites any earlier code for the same email. Consume succeeds at most
// once per stored code: a matching call removes it, a mismatch leaves it in place.
type Ledger interface {
	Put(email, code string) error
	Consume(email, code string) (bool, error)
}

// GenerateCode returns a uniformly random six-digit code in [100000, 999999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(100000+n.Int64(), 10), nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", errEmailRequired
	}
	return email, nil
}
