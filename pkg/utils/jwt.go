package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bizhub-backend/pkg/models"
)

var (
	ErrTokenInvalid  = errors.New("invalid token")
	ErrTokenNotAuthd = errors.New("token is not for an authenticated user")
)

// JWTService verifies Supabase access tokens, which are HS256-signed with
// the project's JWT secret. It can also mint tokens for tooling and tests.
type JWTService struct {
	secretKey []byte
	parser    *jwt.Parser
}

func NewJWTService(secretKey string) *JWTService {
	return &JWTService{
		secretKey: []byte(secretKey),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

// ValidateToken parses and verifies an access token. Only tokens issued
// to the "authenticated" postgres role with a subject are accepted.
func (j *JWTService) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}
	token, err := j.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return j.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Role != "authenticated" || claims.Subject == "" {
		return nil, ErrTokenNotAuthd
	}
	return claims, nil
}

// ExtractUserFromToken validates the token and returns the caller.
func (j *JWTService) ExtractUserFromToken(tokenString string) (*models.AuthUser, error) {
	claims, err := j.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &models.AuthUser{
		ID:        claims.Subject,
		Email:     claims.Email,
		SessionID: claims.SessionID,
		Token:     tokenString,
		Claims:    claims,
	}, nil
}

// GenerateAccessToken signs an access token shaped like the ones GoTrue issues.
func (j *JWTService) GenerateAccessToken(userID, email, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &models.TokenClaims{
		Email:     email,
		Role:      "authenticated",
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{"authenticated"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}
	return signed, nil
}
