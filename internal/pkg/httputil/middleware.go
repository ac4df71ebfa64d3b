package httputil

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

// CORSMiddleware creates CORS middleware that handles preflight requests
// and adds appropriate CORS headers to responses.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	originsSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originsSet[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Check if origin is allowed
			if originsSet[origin] || originsSet["*"] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			// Handle preflight OPTIONS request
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type contextKey string

// CallerKey stores the authenticated caller identity in the request context.
const CallerKey contextKey = "caller"

// Authenticator verifies bearer tokens and API keys for incoming requests.
// Bearer tokens are HS256-signed JWTs; API keys are compared against bcrypt
// hashes loaded from configuration.
type Authenticator struct {
	jwtSecret    []byte
	apiKeyHashes map[string]string // caller name -> bcrypt hash
}

// NewAuthenticator creates an Authenticator. Either mechanism may be left
// unconfigured by passing an empty secret or a nil map.
func NewAuthenticator(jwtSecret string, apiKeyHashes map[string]string) *Authenticator {
	return &Authenticator{
		jwtSecret:    []byte(jwtSecret),
		apiKeyHashes: apiKeyHashes,
	}
}

// VerifyToken validates an HS256 JWT and returns the subject claim.
func (a *Authenticator) VerifyToken(tokenString string) (string, error) {
	if len(a.jwtSecret) == 0 {
		return "", fmt.Errorf("bearer token authentication is not configured")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return subject, nil
}

// VerifyAPIKey compares a presented key against the configured bcrypt hashes
// and returns the matching caller name.
func (a *Authenticator) VerifyAPIKey(key string) (string, error) {
	for caller, hash := range a.apiKeyHashes {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil {
			return caller, nil
		}
	}
	return "", fmt.Errorf("unknown api key")
}

// AuthMiddleware creates authentication middleware accepting either a
// "Authorization: Bearer <jwt>" header or an "X-API-Key" header.
func AuthMiddleware(auth *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
				caller, err := auth.VerifyAPIKey(apiKey)
				if err != nil {
					Error(w, http.StatusUnauthorized, "invalid api key")
					return
				}
				ctx := context.WithValue(r.Context(), CallerKey, caller)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				Error(w, http.StatusUnauthorized, "missing credentials")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				Error(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			caller, err := auth.VerifyToken(parts[1])
			if err != nil {
				Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), CallerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCaller extracts the authenticated caller name from context.
func GetCaller(ctx context.Context) string {
	if caller, ok := ctx.Value(CallerKey).(string); ok {
		return caller
	}
	return ""
}

// RateLimitMiddleware creates per-caller rate limiting middleware. Unauthenticated
// requests are limited by remote address instead.
func RateLimitMiddleware(rps float64, burst int) func(http.Handler) http.Handler {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	limiterFor := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		if lim, ok := limiters[key]; ok {
			return lim
		}
		lim := rate.NewLimiter(rate.Limit(rps), burst)
		limiters[key] = lim
		return lim
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := GetCaller(r.Context())
			if key == "" {
				key = r.RemoteAddr
			}

			if !limiterFor(key).Allow() {
				Error(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
