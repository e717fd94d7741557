package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"aeriegateway/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const UsernameKey contextKey = "username"

// SSOTokenHeader carries the session token issued at login.
const SSOTokenHeader = "x-auth-sso-token"

// RevocationList reports whether a session token was revoked before expiry.
type RevocationList interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

type Authenticator struct {
	Secret        []byte
	UsernameClaim string
	Revoked       RevocationList
}

// UsernameFromContext returns the authenticated username set by Middleware.
func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok && username != ""
}

// WithUsername returns a copy of ctx carrying username.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, UsernameKey, username)
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := tokenFromRequest(r)
		if tokenString == "" {
			http.Error(w, "Unauthorized: No token provided", http.StatusUnauthorized)
			return
		}

		username, err := a.usernameFromToken(tokenString)
		if err != nil {
			logger.Sugar.Infof("Invalid token: %v", err)
			http.Error(w, "Unauthorized: Invalid or expired token", http.StatusUnauthorized)
			return
		}

		if a.Revoked != nil {
			revoked, err := a.Revoked.IsRevoked(r.Context(), tokenString)
			if err != nil {
				logger.Sugar.Errorf("Failed to check token revocation: %v", err)
				http.Error(w, "Unable to validate session", http.StatusServiceUnavailable)
				return
			}
			if revoked {
				http.Error(w, "Unauthorized: Session has ended", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(WithUsername(r.Context(), username)))
	})
}

func (a *Authenticator) usernameFromToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		if len(a.Secret) == 0 {
			return nil, fmt.Errorf("server is not configured to validate session tokens")
		}
		return a.Secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("token is not valid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("could not parse token claims")
	}
	for _, name := range []string{a.UsernameClaim, "sub"} {
		if name == "" {
			continue
		}
		if username, ok := claims[name].(string); ok && username != "" {
			return username, nil
		}
	}
	return "", fmt.Errorf("username claim %q is missing", a.UsernameClaim)
}

// tokenFromRequest checks the SSO header, then a Bearer token, then the
// query string, since browsers cannot set headers on websocket upgrades.
func tokenFromRequest(r *http.Request) string {
	if tok := strings.TrimSpace(r.Header.Get(SSOTokenHeader)); tok != "" {
		return tok
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.URL.Query().Get("token")
}
