package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// ActorClaims identifies the authenticated user behind an API call:
// the moderation author or reviewer plus the roles and teams the
// token was minted with.
type ActorClaims struct {
	jwt.RegisteredClaims
	ActorID string `json:"actor_id"`
	Roles   string `json:"roles"`
	Teams   string `json:"teams"`
}

type TokenManager struct {
	signingKey []byte
	ttl        time.Duration
}

func NewTokenManager(signingKey []byte, ttl time.Duration) *TokenManager {
	return &TokenManager{signingKey: signingKey, ttl: ttl}
}

func (m *TokenManager) Generate(actorID string, roles, teams []string) (string, error) {
	claims := ActorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   actorID,
			Issuer:    "modgate",
		},
		ActorID: actorID,
		Roles:   strings.Join(roles, ","),
		Teams:   strings.Join(teams, ","),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.signingKey)
}

func (m *TokenManager) Validate(tokenString string) (*ActorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ActorClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.signingKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*ActorClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (c *ActorClaims) HasRole(required string) bool {
	for _, role := range strings.Split(c.Roles, ",") {
		if role == required {
			return true
		}
	}
	return false
}
