// Package server exposes the expense store over HTTP: session-cookie auth
// plus JSON endpoints for categories and expenses.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"etracker/internal/auth"
	applog "etracker/internal/log"
	"etracker/internal/storage"
)

type Server struct {
	http.Server
	auth   *auth.Service
	repo   *storage.SQLiteRepository
	logger *applog.Logger

	authLimiter        *rateLimiter
	stopSessionCleanup chan struct{}
	shutdownOnce       sync.Once
}

// New configures routes and returns a ready-to-run server.
func New(addr string, authService *auth.Service, repo *storage.SQLiteRepository, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.New(applog.Config{Level: applog.LevelFromEnv(), Component: applog.ComponentServer})
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		auth:               authService,
		repo:               repo,
		logger:             logger,
		authLimiter:        newRateLimiter(30),
		stopSessionCleanup: make(chan struct{}),
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /auth/register", s.withLogging(s.withRateLimit(s.handleRegister)))
	mux.HandleFunc("POST /auth/login", s.withLogging(s.withRateLimit(s.handleLogin)))
	mux.HandleFunc("POST /auth/logout", s.withLogging(s.handleLogout))
	mux.HandleFunc("POST /auth/logout-all", s.withLogging(s.requireUser(s.handleLogoutAll)))
	mux.HandleFunc("GET /auth/me", s.withLogging(s.requireUser(s.handleMe)))

	mux.HandleFunc("GET /categories", s.withLogging(s.requireUser(s.handleListCategories)))
	mux.HandleFunc("POST /categories", s.withLogging(s.requireUser(s.handleCreateCategory)))
	mux.HandleFunc("PUT /categories/{id}", s.withLogging(s.requireUser(s.handleUpdateCategory)))
	mux.HandleFunc("DELETE /categories/{id}", s.withLogging(s.requireUser(s.handleDeleteCategory)))
	mux.HandleFunc("GET /expenses", s.withLogging(s.requireUser(s.handleListExpenses)))
	mux.HandleFunc("POST /expenses", s.withLogging(s.requireUser(s.handleCreateExpense)))
	mux.HandleFunc("GET /expenses/by-category", s.withLogging(s.requireUser(s.handleExpensesByCategory)))
	mux.HandleFunc("PUT /expenses/{id}", s.withLogging(s.requireUser(s.handleUpdateExpense)))
	mux.HandleFunc("DELETE /expenses/{id}", s.withLogging(s.requireUser(s.handleDeleteExpense)))

	// Expired sessions accumulate as dead rows; sweep them periodically.
	go s.startSessionCleanup()

	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withLogging adds request ids, security headers and request/response
// logging around a handler.
func (s *Server) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := generateRequestID()

		s.logger.Debug("request started",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, clientIP(r))

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(rw, r)

		s.logger.Info("request completed",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.status,
			applog.FieldDuration, time.Since(start).Milliseconds())
	}
}

// requireUser resolves the session cookie to a user and rejects the
// request otherwise. An invalid cookie is cleared so the client does not
// keep replaying it.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(auth.SessionCookie)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Missing session token")
			return
		}

		user, err := s.auth.UserBySession(r.Context(), cookie.Value)
		if err != nil {
			clearSessionCookie(w)
			respondError(w, http.StatusUnauthorized, "Invalid session")
			return
		}

		next(w, r.WithContext(auth.WithUser(r.Context(), user)))
	}
}

func (s *Server) startSessionCleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := s.auth.CleanupExpiredSessions(ctx); err != nil {
				s.logger.Warn("session cleanup failed", applog.FieldError, err)
			}
			cancel()
		case <-s.stopSessionCleanup:
			return
		}
	}
}

// Shutdown stops the cleanup goroutine and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.stopSessionCleanup)
		s.authLimiter.close()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	return r.RemoteAddr
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
