package services

import (
	"errors"
	"strings"
	"time"

	"github.com/chair-kursi/blitz-monad-miniapp-template/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// AuthService verifies the signed identity token presented by a connecting
// client and can mint tokens for tests and tooling.
type AuthService struct {
	jwtSecret []byte
}

func NewAuthService(jwtSecret string) *AuthService {
	return &AuthService{jwtSecret: []byte(jwtSecret)}
}

// Verify validates the token and returns the identity it carries. The wallet
// address is normalized to lowercase here and is immutable afterwards.
func (s *AuthService) Verify(tokenString string) (models.Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return models.Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, ErrInvalidToken
	}

	playerID, ok := claims["player_id"].(float64)
	if !ok {
		return models.Identity{}, ErrInvalidToken
	}
	username, ok := claims["username"].(string)
	if !ok || username == "" {
		return models.Identity{}, ErrInvalidToken
	}
	address, ok := claims["address"].(string)
	if !ok || !strings.HasPrefix(address, "0x") || len(address) != 42 {
		return models.Identity{}, ErrInvalidToken
	}

	return models.Identity{
		ID:       uint64(playerID),
		Username: username,
		Address:  strings.ToLower(address),
	}, nil
}

// MintToken signs an identity token. Used by tests and local tooling.
func (s *AuthService) MintToken(ident models.Identity, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"player_id": ident.ID,
		"username":  ident.Username,
		"address":   ident.Address,
		"exp":       time.Now().Add(ttl).Unix(),
		"iat":       time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
