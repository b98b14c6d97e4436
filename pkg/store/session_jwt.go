package store

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"blogsvc/pkg/domain"
)

const (
	defaultJWTIssuer   = "blog-auth"
	defaultJWTAudience = "blog-api"
	defaultTokenTTL    = 24 * time.Hour
)

var defaultJWTLeeway = 30 * time.Second

// JWTOptions configures JWT claim validation behavior.
type JWTOptions struct {
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// JWTSessionStore issues and validates HS256 tokens signed with a shared secret.
type JWTSessionStore struct {
	secret []byte
	ttl    time.Duration

	issuer   string
	audience string
	leeway   time.Duration
}

type sessionClaims struct {
	UserID string `json:"id"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// NewJWTSessionStore builds a session store. A zero ttl falls back to 24h.
func NewJWTSessionStore(secret []byte, ttl time.Duration, opts JWTOptions) (*JWTSessionStore, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret required")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	opts = normalizeJWTOptions(opts)
	return &JWTSessionStore{
		secret:   append([]byte(nil), secret...),
		ttl:      ttl,
		issuer:   opts.Issuer,
		audience: opts.Audience,
		leeway:   opts.Leeway,
	}, nil
}

// NewSession signs a token carrying the caller's id, role and name.
func (s *JWTSessionStore) NewSession(c domain.Claims) (string, error) {
	if strings.TrimSpace(c.ID) == "" {
		return "", errors.New("session user id required")
	}
	now := time.Now().UTC()
	claims := sessionClaims{
		UserID: c.ID,
		Role:   string(c.Role),
		Name:   c.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.ID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        randomHexID(12),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseSession verifies signature, issuer, audience and expiry. Every failure
// wraps ErrInvalidToken.
func (s *JWTSessionStore) ParseSession(token string) (domain.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Claims{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	}
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, parserOptions...)
	if err != nil {
		return domain.Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return domain.Claims{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return domain.Claims{}, fmt.Errorf("%w: id claim missing", ErrInvalidToken)
	}
	role := domain.UserRole(claims.Role)
	if role != domain.RoleAdmin {
		role = domain.RoleUser
	}
	return domain.Claims{ID: claims.UserID, Role: role, Name: claims.Name}, nil
}

func randomHexID(nBytes int) string {
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("%x", buf)
}

func normalizeJWTOptions(opts JWTOptions) JWTOptions {
	opts.Issuer = strings.TrimSpace(opts.Issuer)
	opts.Audience = strings.TrimSpace(opts.Audience)
	if opts.Issuer == "" {
		opts.Issuer = defaultJWTIssuer
	}
	if opts.Audience == "" {
		opts.Audience = defaultJWTAudience
	}
	if opts.Leeway <= 0 {
		opts.Leeway = defaultJWTLeeway
	}
	return opts
}
