package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/auth"
	"github.com/claude/liftlog/internal/models"
)

type contextKey int

const userKey contextKey = iota

// Identity resolves the caller's subject and loads their app_user row. The
// subject comes from a bearer JWT when present, then from the tailnet peer,
// then from the configured dev subject.
func (s *Server) Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, name, status, msg := s.subject(r)
		if status != 0 {
			writeJSON(w, status, map[string]string{"error": msg})
			return
		}

		u, err := resolveUser(r.Context(), s.db, s.auth.CreateUsers(), subject, name)
		if errors.Is(err, models.ErrNotFound) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "unknown user"})
			return
		}
		if err != nil {
			s.log.Error("resolving user", "subject", subject, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "resolving user failed"})
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

// userStore is the part of storage identity resolution needs.
type userStore interface {
	ResolveUser(ctx context.Context, subject string) (models.User, error)
	EnsureUser(ctx context.Context, subject, displayName string) (models.User, error)
}

// resolveUser reads the user row and, when create is set, only writes for a
// new user or a changed display name.
func resolveUser(ctx context.Context, users userStore, create bool, subject, name string) (models.User, error) {
	u, err := users.ResolveUser(ctx, subject)
	if !create {
		return u, err
	}
	switch {
	case errors.Is(err, models.ErrNotFound):
	case err != nil:
		return u, err
	case name == "" || name == u.DisplayName:
		return u, nil
	}
	return users.EnsureUser(ctx, subject, name)
}

// subject extracts the caller's subject and display name. A non-zero status
// rejects the request with msg.
func (s *Server) subject(r *http.Request) (subject, name string, status int, msg string) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return "", "", http.StatusUnauthorized, "invalid authorization header format"
		}
		if s.auth.JWTSecret == "" {
			return "", "", http.StatusUnauthorized, "bearer tokens are not accepted"
		}
		claims, err := auth.ParseToken(parts[1], s.auth.JWTSecret)
		if err != nil {
			return "", "", http.StatusUnauthorized, "invalid or expired token"
		}
		return claims.Subject, claims.Name, 0, ""
	}

	if s.tailscale != nil {
		who, err := s.tailscale.WhoIs(r.Context(), r.RemoteAddr)
		if err != nil || who == nil || who.UserProfile == nil || who.UserProfile.LoginName == "" {
			s.log.Warn("tailscale whois failed", "remote_addr", r.RemoteAddr, "error", err)
			return "", "", http.StatusUnauthorized, "tailnet identity unavailable"
		}
		return who.UserProfile.LoginName, who.UserProfile.DisplayName, 0, ""
	}

	if s.auth.DevSubject != "" {
		return s.auth.DevSubject, "", 0, ""
	}
	return "", "", http.StatusUnauthorized, "authorization header required"
}

// userFromContext returns the user loaded by Identity.
func userFromContext(r *http.Request) (models.User, bool) {
	u, ok := r.Context().Value(userKey).(models.User)
	return u, ok
}

// UserID returns the id of the user loaded by Identity, or 0.
func UserID(r *http.Request) int64 {
	u, _ := userFromContext(r)
	return u.ID
}

// RequestLogging returns middleware that logs each request.
func RequestLogging(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start).String(),
			)
		})
	}
}

// CORS adds permissive CORS headers for local development.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Mcp-Session-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusWriter wraps ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush lets streamed MCP responses through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
