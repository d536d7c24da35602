package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"echovia/internal/auth"
	"echovia/pkg/models"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

type contextKey string

const userContextKey contextKey = "user"

// responseWriter wraps http.ResponseWriter to capture status code & size.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(data []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(data)
	rw.size += size
	return size, err
}

// requestLoggingMiddleware logs HTTP requests (if enabled) with latency & size.
func (ms *MusicServer) requestLoggingMiddleware(next http.Handler) http.Handler {
	if !ms.config.Server.RequestLogging {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		if !shouldLogRequest(r.URL.Path) {
			return
		}
		entry := ms.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"remote":   r.RemoteAddr,
			"status":   rw.statusCode,
			"bytes":    humanize.IBytes(uint64(rw.size)),
			"duration": time.Since(start).Round(time.Millisecond),
		})
		if rw.statusCode >= 500 {
			entry.Warn("Request")
		} else {
			entry.Info("Request")
		}
	})
}

// corsMiddleware answers for configured origins. The auth cookie needs
// credentials, so the origin is echoed instead of using a wildcard.
func (ms *MusicServer) corsMiddleware(next http.Handler) http.Handler {
	if !ms.config.Server.EnableCORS {
		return next
	}
	allowAll := lo.Contains(ms.config.Server.AllowedOrigins, "*")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || lo.Contains(ms.config.Server.AllowedOrigins, origin)) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// shouldLogRequest filters noisy paths from request logging output.
func shouldLogRequest(path string) bool {
	return !strings.HasPrefix(path, "/media/") && path != "/favicon.ico"
}

// panicRecoveryMiddleware intercepts panics returning HTTP 500 without crashing the process.
func (ms *MusicServer) panicRecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				ms.logger.WithFields(logrus.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
					"panic":  err,
				}).Error("Recovered from panic")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requireAuth resolves the request's token to an account and stores it in
// the request context.
func (ms *MusicServer) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.TokenFromRequest(r)
		if !ok {
			ms.respondWithError(w, r, http.StatusUnauthorized, "Unauthorized", nil)
			return
		}

		user, err := ms.auth.Authenticate(token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				ms.respondWithError(w, r, http.StatusUnauthorized, "Unauthorized", nil)
				return
			}
			ms.respondWithError(w, r, http.StatusInternalServerError, "Internal server error", err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

// requireAdmin is requireAuth plus an admin or majorAdmin role
func (ms *MusicServer) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return ms.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		if !currentUser(r).Role.IsAdmin() {
			ms.respondWithError(w, r, http.StatusForbidden, "Forbidden", nil)
			return
		}
		next(w, r)
	})
}

// currentUser returns the account stored by requireAuth
func currentUser(r *http.Request) models.User {
	user, _ := r.Context().Value(userContextKey).(models.User)
	return user
}
