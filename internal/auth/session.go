package auth

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

// CookieName is the cookie that carries the JWT
const CookieName = "token"

// SetTokenCookie writes the token cookie on the response
func SetTokenCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
}

// ClearTokenCookie expires the token cookie
func ClearTokenCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
}

// TokenFromRequest returns the token from the cookie, falling back to an
// Authorization: Bearer header.
func TokenFromRequest(r *http.Request) (string, bool) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		token = strings.TrimSpace(token)
		return token, token != ""
	}
	return "", false
}

// RevocationList remembers logged-out token ids until they would have
// expired anyway.
type RevocationList struct {
	mutex   sync.RWMutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewRevocationList creates an empty list
func NewRevocationList() *RevocationList {
	return &RevocationList{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke marks a token id as logged out until expiresAt
func (rl *RevocationList) Revoke(id string, expiresAt time.Time) {
	if id == "" {
		return
	}
	rl.mutex.Lock()
	rl.revoked[id] = expiresAt
	rl.mutex.Unlock()
}

// IsRevoked checks a token id
func (rl *RevocationList) IsRevoked(id string) bool {
	rl.mutex.RLock()
	_, ok := rl.revoked[id]
	rl.mutex.RUnlock()
	return ok
}

// Len returns the number of remembered ids
func (rl *RevocationList) Len() int {
	rl.mutex.RLock()
	defer rl.mutex.RUnlock()
	return len(rl.revoked)
}

// Sweep drops ids whose tokens have expired
func (rl *RevocationList) Sweep() {
	now := rl.now()
	rl.mutex.Lock()
	for id, exp := range rl.revoked {
		if now.After(exp) {
			delete(rl.revoked, id)
		}
	}
	rl.mutex.Unlock()
}

// Run sweeps on every tick until ctx is cancelled
func (rl *RevocationList) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}
