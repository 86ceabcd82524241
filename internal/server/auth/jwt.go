// Package auth issues and validates bearer tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/rentdesk/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the standard claims plus the admin flag. The subject is
// the user's email.
type Claims struct {
	jwt.RegisteredClaims
	IsAdmin bool `json:"is_admin,omitempty"`
}

func GenerateToken(email string, isAdmin bool, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		IsAdmin: isAdmin,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken validates the signature and expiry and returns the claims.
// Expired tokens yield common.ErrTokenExpired, anything else that fails
// validation yields common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
