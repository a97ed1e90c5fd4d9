package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"bambu_bridge/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Domain errors for auth flows.
var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidToken    = errors.New("invalid token")
)

const oneshotTTL = time.Minute

// AccessService implements the login and token surface. Dashboards treat
// the bridge as a trusted local service, so tokens are issued for parity
// with stock Moonraker rather than enforced on every route.
type AccessService struct {
	users      repository.UserRepo
	signingKey []byte
	tokenTTL   time.Duration
}

func NewAccessService(users repository.UserRepo, signingKey string, tokenTTL time.Duration) *AccessService {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &AccessService{
		users:      users,
		signingKey: []byte(signingKey),
		tokenTTL:   tokenTTL,
	}
}

// Claims defines the JWT payload.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// CreateUser hashes the password and stores a new user.
func (s *AccessService) CreateUser(ctx context.Context, username, password string) (int, error) {
	if strings.TrimSpace(password) == "" {
		return 0, fmt.Errorf("create user: %w", ErrInvalidPassword)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	return s.users.Create(ctx, username, string(hash))
}

// Login validates credentials and returns a signed JWT.
func (s *AccessService) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidPassword
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Username: u.Username,
	})
	return token.SignedString(s.signingKey)
}

// ParseToken verifies a JWT and returns the username it was issued to.
func (s *AccessService) ParseToken(accessToken string) (string, error) {
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	return claims.Username, nil
}

// OneshotToken returns an opaque short-lived token plus its unix expiry.
func (s *AccessService) OneshotToken() (string, int64) {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	token := base64.RawURLEncoding.EncodeToString(buf)
	return token, time.Now().Add(oneshotTTL).Unix()
}
