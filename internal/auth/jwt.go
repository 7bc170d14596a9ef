package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrRevokedToken = errors.New("token revoked")
)

// Token is a signed access token.
type Token struct {
	AccessToken string
	ID          string
	ExpiresAt   time.Time
}

// Claims represents JWT payload.
type Claims struct {
	Role       Role   `json:"role"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	RoomNumber string `json:"room,omitempty"`
	jwt.RegisteredClaims
}

// Principal rebuilds the session principal carried by the claims.
func (c Claims) Principal() Principal {
	return Principal{ID: c.Subject, Role: c.Role, Name: c.Name, Email: c.Email, RoomNumber: c.RoomNumber}
}

// Tokens issues, verifies and revokes HS256 session tokens.
type Tokens struct {
	key     []byte
	issuer  string
	ttl     time.Duration
	revoked Revoker
	now     func() time.Time
}

// NewTokens creates a token manager. A nil revoker keeps revocations in memory.
func NewTokens(key, issuer string, ttl time.Duration, revoked Revoker) *Tokens {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if revoked == nil {
		revoked = NewMemoryRevoker()
	}
	return &Tokens{key: []byte(key), issuer: issuer, ttl: ttl, revoked: revoked, now: time.Now}
}

// Issue signs an access token for p.
func (t *Tokens) Issue(p Principal) (Token, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	id := uuid.NewString()
	claims := Claims{
		Role:       p.Role,
		Name:       p.Name,
		Email:      p.Email,
		RoomNumber: p.RoomNumber,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    t.issuer,
			Subject:   p.ID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, ID: id, ExpiresAt: exp}, nil
}

// Parse validates a token and returns claims, rejecting revoked ones.
func (t *Tokens) Parse(ctx context.Context, tokenStr string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return t.key, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || !claims.Role.Valid() || claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	if t.issuer != "" && claims.Issuer != t.issuer {
		return Claims{}, ErrInvalidToken
	}
	revoked, err := t.revoked.Revoked(ctx, claims.ID)
	if err != nil {
		return Claims{}, err
	}
	if revoked {
		return Claims{}, ErrRevokedToken
	}
	return *claims, nil
}

// Revoke blocks the token with the given claims until it would have expired.
func (t *Tokens) Revoke(ctx context.Context, c Claims) error {
	if c.ID == "" {
		return ErrInvalidToken
	}
	exp := t.now().Add(t.ttl)
	if c.ExpiresAt != nil {
		exp = c.ExpiresAt.Time
	}
	return t.revoked.Revoke(ctx, c.ID, exp)
}
