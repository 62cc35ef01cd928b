package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eduprep/mocktest-backend/internal/config"
	"github.com/eduprep/mocktest-backend/internal/model"
	"github.com/eduprep/mocktest-backend/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// TokenType distinguishes principals embedded in a JWT.
type TokenType string

const TokenTypeStudent TokenType = "student"

// Claims is the JWT payload for authenticated students.
type Claims struct {
	UserID    int       `json:"user_id"`
	Name      string    `json:"name"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService issues and validates student tokens.
type AuthService struct {
	cfg         *config.Config
	studentRepo *repository.StudentRepository
	rdb         *redis.Client
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, studentRepo *repository.StudentRepository, rdb *redis.Client) *AuthService {
	return &AuthService{cfg: cfg, studentRepo: studentRepo, rdb: rdb}
}

// Login verifies credentials and returns a signed token plus the student.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *model.Student, error) {
	student, err := s.studentRepo.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(student.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(student)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}

	// Track the login in Redis; best-effort, login still succeeds without it.
	_ = s.rdb.Set(ctx, config.CacheKey.StudentLoginKey(student.ID), time.Now().Unix(), s.cfg.JWTExpiry).Err()

	return token, student, nil
}

func (s *AuthService) issueToken(student *model.Student) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    student.ID,
		Name:      student.Name,
		TokenType: TokenTypeStudent,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// ValidateToken parses and verifies a JWT string.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
