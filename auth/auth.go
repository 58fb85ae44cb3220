// Package auth resolves connect credentials to stable user ids. The
// delivery core trusts the resolved id verbatim.
package auth

import (
	"fmt"
	"time"

	"chatcore/apperrors"
	"chatcore/config"

	"github.com/golang-jwt/jwt/v5"
)

// Provider authenticates a session's connect credentials
type Provider interface {
	Authenticate(credentials string) (string, error)
}

// Claims is the token payload accepted by the JWT provider
type Claims struct {
	UserID string `json:"userId,omitempty"`
	jwt.RegisteredClaims
}

// JWTProvider validates HS256 tokens and extracts the user id from the
// userId claim, falling back to the subject.
type JWTProvider struct {
	secret []byte
	issuer string
}

func NewJWT(secret string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret), issuer: "chatcore"}
}

func (p *JWTProvider) Authenticate(credentials string) (string, error) {
	if credentials == "" {
		return "", apperrors.NewUnauthenticated("Missing token")
	}

	token, err := jwt.ParseWithClaims(credentials, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return "", apperrors.NewUnauthenticated("Invalid token").WithInternal(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", apperrors.NewUnauthenticated("Invalid token")
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", apperrors.NewUnauthenticated("Token carries no user id")
	}

	return userID, nil
}

// GenerateToken mints a signed token for a user. Used by dev tooling and
// tests; credential issuance proper lives outside this service.
func (p *JWTProvider) GenerateToken(userID string, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    p.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

// InsecureProvider trusts the declared user id. Development and tests only.
type InsecureProvider struct{}

func (InsecureProvider) Authenticate(credentials string) (string, error) {
	if credentials == "" {
		return "", apperrors.NewUnauthenticated("Missing user id")
	}
	return credentials, nil
}

// FromConfig builds the provider selected by configuration
func FromConfig(cfg config.AuthConfig) (Provider, error) {
	switch cfg.Mode {
	case "jwt":
		return NewJWT(cfg.JWTSecret), nil
	case "insecure":
		return InsecureProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode: %q", cfg.Mode)
	}
}
