// Package token issues and verifies the short-lived session tokens callers
// exchange their allow-listed key for.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	apperrors "github.com/openclaw/completion-gateway/internal/errors"
	"github.com/openclaw/completion-gateway/internal/util"
)

const (
	Issuer   = "completion-gateway"
	Audience = "completion-clients"
)

// SessionToken is the verified content of a token.
type SessionToken struct {
	ID         string
	Issuer     string
	Audience   string
	SubjectKey string
	ExpiresAt  time.Time
}

// Issued is a freshly signed token.
type Issued struct {
	Token  string
	Claims SessionToken
}

type claims struct {
	jwt.RegisteredClaims
	Key string `json:"key"`
}

var errUnknownKey = errors.New("subject key is not allow-listed")

// Service signs tokens with a server secret. With an empty secret each token
// is signed with the caller key it carries, and that key must be on the
// allow-list for the signature to be checked at all.
type Service struct {
	allowed map[string]struct{}
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(allowed map[string]struct{}, secret string, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		allowed: allowed,
		ttl:     ttl,
		now:     time.Now,
	}
	if secret != "" {
		s.secret = []byte(secret)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) isAllowed(key string) bool {
	if key == "" {
		return false
	}
	found := false
	for candidate := range s.allowed {
		if util.ConstantTimeEqual(candidate, key) {
			found = true
		}
	}
	return found
}

func (s *Service) signingKey(subject string) []byte {
	if s.secret != nil {
		return s.secret
	}
	return []byte(subject)
}

// Issue returns a token for callerKey, valid for the configured TTL.
func (s *Service) Issue(callerKey string) (*Issued, error) {
	if !s.isAllowed(callerKey) {
		return nil, apperrors.Forbidden("Invalid auth key")
	}

	now := s.now()
	expires := now.Add(s.ttl)
	id := uuid.NewString()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Key: callerKey,
	})

	signed, err := tok.SignedString(s.signingKey(callerKey))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "Token signing failed", err)
	}

	return &Issued{
		Token: signed,
		Claims: SessionToken{
			ID:         id,
			Issuer:     Issuer,
			Audience:   Audience,
			SubjectKey: callerKey,
			ExpiresAt:  time.Unix(expires.Unix(), 0).UTC(),
		},
	}, nil
}

// Verify checks the signature, then issuer, audience, subject key and expiry
// in that order. Every failure is Forbidden with the reason in the message.
func (s *Service) Verify(tokenText string) (*SessionToken, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	var c claims
	_, err := parser.ParseWithClaims(tokenText, &c, func(t *jwt.Token) (interface{}, error) {
		if s.secret != nil {
			return s.secret, nil
		}
		if !s.isAllowed(c.Key) {
			return nil, errUnknownKey
		}
		return []byte(c.Key), nil
	})
	if err != nil {
		if errors.Is(err, errUnknownKey) {
			return nil, failure("KEY")
		}
		return nil, failure("TOKEN")
	}

	if c.Issuer != Issuer {
		return nil, failure("ISSUER")
	}
	if !c.VerifyAudience(Audience, true) {
		return nil, failure("AUDIENCE")
	}
	if !s.isAllowed(c.Key) {
		return nil, failure("KEY")
	}
	if c.ExpiresAt == nil || c.ExpiresAt.Unix() < s.now().Unix() {
		return nil, failure("EXPIRED")
	}

	return &SessionToken{
		ID:         c.ID,
		Issuer:     c.Issuer,
		Audience:   Audience,
		SubjectKey: c.Key,
		ExpiresAt:  c.ExpiresAt.UTC(),
	}, nil
}

func failure(reason string) *apperrors.AppError {
	return apperrors.Forbidden("Invalid auth " + reason)
}
