package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/meverapp/media-gateway/internal/config"
)

// AuthService authenticates the single admin principal and issues the JWTs
// the admin endpoints require. The gateway core only ever consumes the
// resulting "is this caller an authenticated admin" answer.
type AuthService struct {
	adminEmail   string
	passwordHash []byte
	jwtSecret    []byte
	jwtExpiry    time.Duration
}

func NewAuthService(cfg config.AuthConfig) *AuthService {
	expiry := cfg.TokenExpiryHours
	if expiry <= 0 {
		expiry = 24
	}

	return &AuthService{
		adminEmail:   cfg.AdminEmail,
		passwordHash: []byte(cfg.AdminPasswordHash),
		jwtSecret:    []byte(cfg.JWTSecret),
		jwtExpiry:    time.Duration(expiry) * time.Hour,
	}
}

// Authenticates the admin and returns a JWT token
func (s *AuthService) Login(email, password string) (string, error) {
	if len(s.passwordHash) == 0 || len(s.jwtSecret) == 0 {
		return "", errors.New("admin authentication is not configured")
	}

	if email != s.adminEmail {
		return "", errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return "", errors.New("invalid credentials")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"role":  "admin",
		"exp":   time.Now().Add(s.jwtExpiry).Unix(),
		"iat":   time.Now().Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// Validates a JWT token and returns the claims
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Verifying signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}
