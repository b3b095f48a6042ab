package authenticator

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/planfold/planfold/internal/config"
)

const accessTokenTTL = 24 * time.Hour

var ErrInvalidToken = errors.New("invalid access token")

// Claims carried in access tokens. Subject holds the user ID.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// UserID parses the subject back into a user ID
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// Authenticator mints and verifies HMAC-signed access tokens. When no
// secret is configured, auth is disabled and every request passes through
// unauthenticated; useful for local development.
type Authenticator struct {
	secret      []byte
	ttl         time.Duration
	authEnabled bool
}

func New(conf *config.Config) (*Authenticator, error) {
	if conf.AUTH_SECRET == "" {
		return &Authenticator{
			authEnabled: false,
		}, nil
	}

	return &Authenticator{
		secret:      []byte(conf.AUTH_SECRET),
		ttl:         accessTokenTTL,
		authEnabled: true,
	}, nil
}

func (a *Authenticator) AuthEnabled() bool {
	return a.authEnabled
}

// Mint issues a signed access token for the user
func (a *Authenticator) Mint(userID uuid.UUID, email string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// VerifyAccessToken validates the token signature and expiry and returns
// its claims
func (a *Authenticator) VerifyAccessToken(_ context.Context, token string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
