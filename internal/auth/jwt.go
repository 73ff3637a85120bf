// Package auth issues and inspects the access tokens that bind a sync
// session to one goal owner. The server verifies them; the client only
// peeks at the claims to decide whether a session is still usable.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the registered JWT claims plus the owner the token writes for.
type Claims struct {
	jwt.RegisteredClaims
	OwnerID string `json:"owner_id"`
}

// GenerateToken signs an HS256 token for ownerID valid for validity from now.
func GenerateToken(ownerID string, secretKey []byte, validity time.Duration, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		OwnerID: ownerID,
	})

	return token.SignedString(secretKey)
}

// OwnerFromToken verifies the signature and expiry (against now) and returns
// the owner id. Expired tokens yield common.ErrTokenExpired, anything else
// common.ErrInvalidToken.
func OwnerFromToken(tokenString string, secretKey []byte, now time.Time) (string, error) {
	claims := &Claims{}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	token, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid || claims.OwnerID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.OwnerID, nil
}

// PeekClaims decodes the claims without verifying the signature. The client
// cannot verify tokens (it does not hold the secret); it only needs the
// owner and the expiry.
func PeekClaims(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if claims.OwnerID == "" {
		return nil, fmt.Errorf("%w: no owner claim", common.ErrInvalidToken)
	}
	return claims, nil
}
