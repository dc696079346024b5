// Package auth attaches an optional session to each request. Session tokens
// are RS256 JWTs checked against a configured public key; a request without
// a valid token simply carries an empty session.
package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie is the cookie browsers send the session token in.
const SessionCookie = "__session"

type ctxKey struct{}

// Session is the auth context of a request.
type Session struct {
	UserID    string
	SessionID string
	Claims    jwt.MapClaims
}

// Authenticated reports whether the request carried a valid token.
func (s Session) Authenticated() bool {
	return s.UserID != ""
}

// Verifier validates session tokens.
type Verifier struct {
	key     *rsa.PublicKey
	parties []string
	parser  *jwt.Parser
}

// NewVerifier parses the PEM public key. authorizedParties, when non-empty,
// lists the accepted azp values.
func NewVerifier(pemKey string, authorizedParties []string) (*Verifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, err
	}
	return &Verifier{
		key:     key,
		parties: authorizedParties,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(5*time.Second),
		),
	}, nil
}

// Verify checks the token's signature, lifetime and authorized party.
func (v *Verifier) Verify(token string) (Session, error) {
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		return Session{}, err
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Session{}, errors.New("token has no subject")
	}
	if len(v.parties) > 0 {
		azp, _ := claims["azp"].(string)
		if azp != "" && !slices.Contains(v.parties, azp) {
			return Session{}, errors.New("token issued for an unauthorized party")
		}
	}

	sid, _ := claims["sid"].(string)
	return Session{UserID: sub, SessionID: sid, Claims: claims}, nil
}

// WithSession attaches a Session to every request. It never rejects: a
// missing or invalid token, or a nil verifier, yields an empty session.
func WithSession(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var s Session
			if v != nil {
				if raw := tokenFrom(r); raw != "" {
					if verified, err := v.Verify(raw); err == nil {
						s = verified
					}
				}
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, s)))
		})
	}
}

// FromContext returns the request's session.
func FromContext(ctx context.Context) Session {
	s, _ := ctx.Value(ctxKey{}).(Session)
	return s
}

func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}
