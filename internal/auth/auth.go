// Package auth issues and verifies the opaque credential tokens consumed by
// the realtime handshake and the REST surface, and hashes passwords.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredential covers expired, malformed and unknown-subject tokens.
// Callers must not learn which case occurred.
var ErrInvalidCredential = errors.New("authentication failed")

// Verifier issues and validates signed user tokens
type Verifier struct {
	secret []byte
	ttl    time.Duration
}

// NewVerifier returns a Verifier signing with secret and issuing tokens valid for ttl
func NewVerifier(secret []byte, ttl time.Duration) *Verifier {
	return &Verifier{
		secret: secret,
		ttl:    ttl,
	}
}

// Issue creates a signed token whose subject is the user id
func (v *Verifier) Issue(userID int64) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		Issuer:    "dialog",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(v.secret)
}

// Verify resolves a token to the user id it was issued for.
// Every failure mode collapses into ErrInvalidCredential.
func (v *Verifier) Verify(token string) (int64, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, ErrInvalidCredential
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return 0, ErrInvalidCredential
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID < 1 {
		return 0, ErrInvalidCredential
	}

	return userID, nil
}

// HashPassword derives a bcrypt hash for storage
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a candidate password against a stored hash
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredential
	}
	return nil
}
