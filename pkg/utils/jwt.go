package utils

import (
	"fmt"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// OwnerClaims is the subset of the identity provider's token this service
// cares about: the owning user id. User records themselves are synced and
// stored elsewhere.
type OwnerClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// ValidateOwnerToken parses a bearer token issued by the identity provider
// and extracts the owner id.
func ValidateOwnerToken(tokenString string, secretKey string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &OwnerClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*OwnerClaims)
	if !ok || !token.Valid {
		return uuid.Nil, fmt.Errorf("invalid token claims")
	}

	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}
	owner, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid owner id in token: %w", err)
	}
	return owner, nil
}
