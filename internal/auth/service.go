// Package auth implements the server side of the session model: password
// hashing, session token issuance and the middleware that resolves the
// session cookie back to a user.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"etracker/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidSession     = errors.New("invalid session")
)

// SessionCookie is the cookie the client transport carries implicitly on
// every privileged call.
const SessionCookie = "session_token"

type Service struct {
	repo       *storage.SQLiteRepository
	sessionTTL time.Duration
	bcryptCost int
}

func NewService(repo *storage.SQLiteRepository, sessionTTL time.Duration, bcryptCost int) *Service {
	return &Service{repo: repo, sessionTTL: sessionTTL, bcryptCost: bcryptCost}
}

// Register creates a new account. It does not create a session; the user
// logs in explicitly afterwards.
func (s *Service) Register(ctx context.Context, email, password string) (storage.User, error) {
	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return storage.User{}, ErrUserExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return storage.User{}, fmt.Errorf("check existing user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return storage.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, email, string(hashed))
	if err != nil {
		return storage.User{}, err
	}
	return user, nil
}

// Login verifies the credentials and issues a fresh session token. Wrong
// email and wrong password both collapse to ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (storage.User, string, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return storage.User{}, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return storage.User{}, "", ErrInvalidCredentials
	}

	token, err := generateSessionToken()
	if err != nil {
		return storage.User{}, "", fmt.Errorf("generate session token: %w", err)
	}

	session := storage.Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.sessionTTL),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return storage.User{}, "", err
	}

	return user, token, nil
}

// UserBySession resolves a session token to its user.
func (s *Service) UserBySession(ctx context.Context, token string) (storage.User, error) {
	user, err := s.repo.GetUserBySessionToken(ctx, token)
	if err != nil {
		return storage.User{}, ErrInvalidSession
	}
	return user, nil
}

// Logout revokes the session token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.repo.DeleteSession(ctx, token)
}

// LogoutAll revokes every session the user holds, signing out all devices
// at once.
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	return s.repo.DeleteUserSessions(ctx, userID)
}

// CleanupExpiredSessions drops sessions past their expiry.
func (s *Service) CleanupExpiredSessions(ctx context.Context) error {
	return s.repo.DeleteExpiredSessions(ctx)
}

// SessionTTL reports how long issued sessions live, for cookie expiry.
func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}

func generateSessionToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

type contextKey string

const userContextKey contextKey = "user"

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, user storage.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext extracts the authenticated user placed by the middleware.
func UserFromContext(ctx context.Context) (storage.User, bool) {
	user, ok := ctx.Value(userContextKey).(storage.User)
	return user, ok
}
