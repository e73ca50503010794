package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "partsmarket"

// Token types carried in the token_type claim.
const (
	AccessToken  = "access"
	RefreshToken = "refresh"
)

// ErrWrongTokenType is returned when a token is used outside its purpose.
var ErrWrongTokenType = errors.New("wrong token type")

type jwtCustomClaims struct {
	UserID    string `json:"user_id"`
	UserType  string `json:"user_type"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenClaims is what the auth middleware exposes to handlers.
type TokenClaims struct {
	ID        string
	UserID    uuid.UUID
	UserType  string
	TokenType string
	ExpiresAt time.Time
}

// GenerateToken creates a signed access token for the provided user.
func GenerateToken(secret string, userID uuid.UUID, userType string, ttl time.Duration) (string, error) {
	return generate(secret, userID, userType, AccessToken, ttl)
}

// GenerateRefreshToken creates a signed refresh token for the provided user.
func GenerateRefreshToken(secret string, userID uuid.UUID, userType string, ttl time.Duration) (string, error) {
	return generate(secret, userID, userType, RefreshToken, ttl)
}

func generate(secret string, userID uuid.UUID, userType, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &jwtCustomClaims{
		UserID:    userID.String(),
		UserType:  userType,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates the token and returns its claims.
func ParseToken(secret, tokenString string) (TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return TokenClaims{}, err
	}

	claims, ok := token.Claims.(*jwtCustomClaims)
	if !ok || !token.Valid {
		return TokenClaims{}, jwt.ErrTokenInvalidClaims
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return TokenClaims{}, jwt.ErrTokenInvalidClaims
	}
	return TokenClaims{
		ID:        claims.ID,
		UserID:    id,
		UserType:  claims.UserType,
		TokenType: claims.TokenType,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// ParseTokenOfType is ParseToken plus a check on the token_type claim.
func ParseTokenOfType(secret, tokenString, tokenType string) (TokenClaims, error) {
	claims, err := ParseToken(secret, tokenString)
	if err != nil {
		return TokenClaims{}, err
	}
	if claims.TokenType != tokenType {
		return TokenClaims{}, ErrWrongTokenType
	}
	return claims, nil
}
