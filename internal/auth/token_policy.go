package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// tokenPolicy holds the claim requirements every storefront access token must
// satisfy. The algorithm is pinned so a token cannot downgrade the check by
// naming a weaker one in its header.
type tokenPolicy struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// check verifies issuer, audience, validity window, and signing algorithm
// against the policy, evaluating time-based claims at the supplied instant.
func (p tokenPolicy) check(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) error {
	if tok == nil {
		return errors.New("auth: token is nil")
	}

	if algorithm == "" {
		return errors.New("auth: token missing algorithm")
	}
	if p.Algorithm != "" && algorithm != p.Algorithm {
		return fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}

	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
	}
	if p.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(p.ClockSkew))
	}
	if p.Issuer != "" {
		options = append(options, jwt.WithIssuer(p.Issuer))
	}
	if p.Audience != "" {
		options = append(options, jwt.WithAudience(p.Audience))
	}

	return jwt.Validate(tok, options...)
}
