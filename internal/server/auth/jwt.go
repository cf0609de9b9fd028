// Package auth validates access tokens and carries the authenticated caller
// through request contexts. Tokens are issued by the identity provider and
// signed with a shared HS256 secret.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the registered claims plus the tenant-scoped identity.
type Claims struct {
	jwt.RegisteredClaims
	UserID      string   `json:"uid"`
	TenantID    string   `json:"tid"`
	Permissions []string `json:"perms,omitempty"`
}

func GenerateToken(c Caller, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID:      c.UserID,
		TenantID:    c.TenantID,
		Permissions: c.Permissions,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken validates tokenString and returns the caller it names.
func ParseToken(tokenString string, secretKey []byte) (Caller, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Caller{}, fmt.Errorf("%w: token expired", common.ErrInvalidToken)
		}
		return Caller{}, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return Caller{}, common.ErrInvalidToken
	}

	c := Caller{UserID: claims.UserID, TenantID: claims.TenantID, Permissions: claims.Permissions}
	if err := c.Validate(); err != nil {
		return Caller{}, err
	}
	return c, nil
}
