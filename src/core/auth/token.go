package auth

import (
	"errors"
	"time"

	"botforge-server/src/configs"

	"github.com/golang-jwt/jwt/v5"
)

// UserClaims carries the authenticated account identity.
type UserClaims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies user JWTs.
type TokenIssuer struct {
	key    []byte
	issuer string
	expiry time.Duration
}

func NewTokenIssuer(cfg configs.JWTConfig) *TokenIssuer {
	expiry := time.Duration(cfg.ExpiryHours) * time.Hour
	if expiry <= 0 {
		expiry = 72 * time.Hour
	}
	return &TokenIssuer{
		key:    []byte(cfg.Key),
		issuer: cfg.Issuer,
		expiry: expiry,
	}
}

// Generate creates a signed token for the user.
func (t *TokenIssuer) Generate(userID uint, role string) (string, error) {
	if len(t.key) == 0 {
		return "", errors.New("jwt signing key is not configured")
	}
	claims := UserClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(t.expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
}

// Parse verifies a token and returns its claims.
func (t *TokenIssuer) Parse(tokenString string) (*UserClaims, error) {
	claims := &UserClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.key, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
