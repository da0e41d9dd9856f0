package domain

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/Vovarama1992/featured-media/internal/ports"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidPassword = errors.New("invalid password")

const tokenSubject = "media-admin"

type authService struct {
	passwordHash []byte
	secret       string
}

// NewAuthService checks logins against a bcrypt hash. An empty hash
// disables login.
func NewAuthService(passwordHash, secret string) ports.AuthService {
	return &authService{
		passwordHash: []byte(passwordHash),
		secret:       secret,
	}
}

func (s *authService) Login(ctx context.Context, password string) (string, error) {
	if len(s.passwordHash) == 0 {
		return "", ErrInvalidPassword
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return "", ErrInvalidPassword
	}
	return s.sign(tokenSubject), nil
}

func (s *authService) ValidateToken(ctx context.Context, token string) (bool, error) {
	valid := s.sign(tokenSubject)
	return hmac.Equal([]byte(token), []byte(valid)), nil
}

func (s *authService) sign(msg string) string {
	h := hmac.New(sha256.New, []byte(s.secret))
	h.Write([]byte(msg))
	return hex.EncodeToString(h.Sum(nil))
}
