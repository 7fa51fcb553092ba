// Package auth issues and verifies the signed tokens used by the admin
// login flow.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ticketdesk/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Purpose binds a token to one step of the login flow.
type Purpose string

const (
	PurposePreAuth Purpose = "pre_auth"
	PurposeOTP     Purpose = "otp"
	PurposeSession Purpose = "session"
)

// Claims is the payload of every ticketdesk token. Only the fields relevant
// to the token's purpose are populated.
type Claims struct {
	jwt.RegisteredClaims
	Purpose          Purpose `json:"purpose"`
	PasswordVerified bool    `json:"passwordVerified,omitempty"`
	OTP              string  `json:"otp,omitempty"`
	Email            string  `json:"email,omitempty"`
	User             string  `json:"user,omitempty"`
}

// Tokens signs and verifies HS256 tokens with a shared secret.
type Tokens struct {
	secret []byte
	now    func() time.Time
}

// NewTokens returns a token service. An empty secret is accepted here and
// reported as common.ErrServerMisconfigured by Issue and Verify.
func NewTokens(secret string) *Tokens {
	return &Tokens{secret: []byte(secret), now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (t *Tokens) WithClock(now func() time.Time) *Tokens {
	t.now = now
	return t
}

// Issue signs claims with an expiry of ttl from now and returns the token
// together with its expiry time.
func (t *Tokens) Issue(claims Claims, ttl time.Duration) (string, time.Time, error) {
	if len(t.secret) == 0 {
		return "", time.Time{}, common.ErrServerMisconfigured
	}
	if claims.Purpose == "" {
		return "", time.Time{}, fmt.Errorf("issue token: %w: empty purpose", common.ErrInvalidInput)
	}

	now := t.now()
	exp := now.Add(ttl)
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(exp)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("issue token: %w", err)
	}
	return signed, exp.Truncate(time.Second), nil
}

// Verify checks signature and expiry and returns the decoded claims.
func (t *Tokens) Verify(token string) (*Claims, error) {
	if len(t.secret) == 0 {
		return nil, common.ErrServerMisconfigured
	}
	if token == "" {
		return nil, common.ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if !parsed.Valid {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// VerifyFor is Verify plus a check that the token was issued for purpose.
func (t *Tokens) VerifyFor(token string, purpose Purpose) (*Claims, error) {
	claims, err := t.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}
