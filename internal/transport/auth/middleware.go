package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"loanbook/internal/domain"
	"loanbook/internal/repository"
)

type ctxKey string

const UserIDKey ctxKey = "userID"

// TokenMiddleware authenticates requests with a personal access token,
// taken from the Authorization header or, for websocket handshakes where
// headers are awkward, from a "token" query parameter.
func TokenMiddleware(tokenRepo *repository.PersonalAccessTokenRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pat := lookupToken(r, tokenRepo)
			if pat == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if pat.ExpiresAt != nil && pat.ExpiresAt.Before(time.Now()) {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, pat.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func lookupToken(r *http.Request, tokenRepo *repository.PersonalAccessTokenRepository) *domain.PersonalAccessToken {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		plain := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if plain != "" {
			pat, err := tokenRepo.FindTokenByPlainToken(r.Context(), plain)
			if err == nil {
				return pat
			}
			log.Printf("[AUTH] header token lookup failed: %v", err)
		}
	}

	if token := r.URL.Query().Get("token"); token != "" {
		pat, err := tokenRepo.FindTokenByPlainToken(r.Context(), token)
		if err == nil {
			return pat
		}
		log.Printf("[AUTH] query token lookup failed: %v", err)
	}

	return nil
}

func GetUserID(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	if !ok {
		return 0, errors.New("userID not found in context")
	}
	return userID, nil
}
