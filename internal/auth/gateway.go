package auth

import (
	"context"
	"errors"
	"log"
	"strings"
)

// ErrInvalidCredentials is the only login failure callers ever see.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Gateway verifies credentials against an identity provider.
type Gateway interface {
	Authenticate(ctx context.Context, email, password string) (Principal, error)
}

// Session is the outcome of a successful login.
type Session struct {
	Principal Principal
	Token     Token
}

// Authenticator turns gateway results into sessions.
type Authenticator struct {
	gateway Gateway
	tokens  *Tokens
	// OnFailure is called with the underlying cause of each rejected login.
	OnFailure func(email string, cause error)
}

// NewAuthenticator wires a gateway to a token issuer.
func NewAuthenticator(g Gateway, t *Tokens) *Authenticator {
	return &Authenticator{gateway: g, tokens: t}
}

// Login authenticates and issues a token. Every gateway failure, whatever its
// cause, is reported as ErrInvalidCredentials; the cause is only logged.
func (a *Authenticator) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	p, err := a.gateway.Authenticate(ctx, email, password)
	if err == nil && (!p.Role.Valid() || p.ID == "") {
		err = errors.New("gateway returned an incomplete principal")
	}
	if err != nil {
		log.Printf("login failed for %s: %v", email, err)
		if a.OnFailure != nil {
			a.OnFailure(email, err)
		}
		return Session{}, ErrInvalidCredentials
	}
	tok, err := a.tokens.Issue(p)
	if err != nil {
		return Session{}, err
	}
	return Session{Principal: p, Token: tok}, nil
}
