package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/mehmetcc/cafe-authentication-service/internal/person"
)

const accessTokenIssuer = "cafe-authentication-service"

var ErrInvalidAccessToken = errors.New("invalid access token")

type AccessClaims struct {
	Email string      `json:"email"`
	Role  person.Role `json:"role"`
	jwt.RegisteredClaims
}

// IssueAccessToken signs a short-lived HS256 token. Every call carries a fresh
// jti, so two tokens minted in the same instant for the same claims differ.
func IssueAccessToken(subject, email string, role person.Role, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    accessTokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseAccessToken(tokenString, secret string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*AccessClaims); ok && token.Valid {
		if claims.Issuer != accessTokenIssuer {
			return nil, ErrInvalidAccessToken
		}
		return claims, nil
	}
	return nil, ErrInvalidAccessToken
}
