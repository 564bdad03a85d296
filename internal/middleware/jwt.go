package middleware

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"

	"crmapi/internal/response"
)

// ContextKey type for context keys
type ContextKey string

const UserIDContextKey ContextKey = "user_id"

var (
	PublicKey *rsa.PublicKey // Set from main or auth
	Rdb       *redis.Client  // Set from main or auth
)

// JWTMiddleware authenticates requests with a Bearer access token and
// injects the user id into the request context. A missing or invalid
// token is the "send to unauthenticated entry" signal: 401, never retried.
func JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.SendError(w, http.StatusUnauthorized, "Missing token")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return PublicKey, nil
		})

		if err != nil || !token.Valid {
			response.SendError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			// Reject tokens revoked by logout or rotation.
			if jti, ok := claims["jti"].(string); ok {
				blacklistKey := fmt.Sprintf("blacklist:access_token:%s", jti)
				val, err := Rdb.Get(r.Context(), blacklistKey).Result()
				if err == nil && val == "1" {
					response.SendError(w, http.StatusUnauthorized, "Token has been revoked")
					return
				}
			}

			userID := int(claims["user_id"].(float64))
			ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
			r = r.WithContext(ctx)
		} else {
			response.SendError(w, http.StatusUnauthorized, "Invalid token claims")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetUserID returns the authenticated user ID from request context, or 0 if not set.
func GetUserID(r *http.Request) int {
	v := r.Context().Value(UserIDContextKey)
	if v == nil {
		return 0
	}
	if id, ok := v.(int); ok {
		return id
	}
	return 0
}
