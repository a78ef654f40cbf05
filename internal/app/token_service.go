package app

import (
	"errors"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates a bearer token that failed verification.
var ErrInvalidToken = errors.New("invalid token")

const tokenIssuer = "analyze-your-life"

// BotClaims identify the user a chat bridge acts for.
type BotClaims struct {
	ChatID int64 `json:"chat,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 bearer tokens for chat bridges.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenService signing with secret.
func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret), now: time.Now}
}

// Enabled reports whether a signing secret is configured.
func (s *TokenService) Enabled() bool { return len(s.secret) > 0 }

// Issue signs a token for userID valid for ttl.
func (s *TokenService) Issue(userID, chatID int64, ttl time.Duration) (string, error) {
	if !s.Enabled() {
		return "", errors.New("bot tokens are disabled")
	}
	now := s.now()
	claims := BotClaims{
		ChatID: chatID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks a token and returns the user id it was issued for.
func (s *TokenService) Verify(token string) (int64, *BotClaims, error) {
	if !s.Enabled() {
		return 0, nil, ErrInvalidToken
	}
	t, err := jwt.ParseWithClaims(token, &BotClaims{}, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return 0, nil, ErrInvalidToken
	}
	claims, ok := t.Claims.(*BotClaims)
	if !ok || !t.Valid {
		return 0, nil, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, nil, ErrInvalidToken
	}
	return userID, claims, nil
}
