package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"pagepilot-go/models"
	"pagepilot-go/utils"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type contextKey string

const UserContextKey contextKey = "user"

// JWTAuth validates the bearer token and rejects tokens revoked by logout.
func JWTAuth(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			bearerToken := strings.Split(authHeader, " ")
			if len(bearerToken) != 2 || bearerToken[0] != "Bearer" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := utils.ValidateToken(bearerToken[1])
			if err != nil {
				log.WithError(err).WithField("path", r.URL.Path).Debug("token validation failed")
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			if claims.ID != "" {
				var count int64
				db.Model(&models.RevokedToken{}).Where("jti = ?", claims.ID).Count(&count)
				if count > 0 {
					http.Error(w, "Token has been revoked", http.StatusUnauthorized)
					return
				}
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalJWT attaches claims when a valid bearer token is present but
// lets anonymous requests through. Used for surfaces that gate per-file
// rather than per-route.
func OptionalJWT(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			bearerToken := strings.Split(authHeader, " ")
			if len(bearerToken) != 2 || bearerToken[0] != "Bearer" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := utils.ValidateToken(bearerToken[1])
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			if claims.ID != "" {
				var count int64
				db.Model(&models.RevokedToken{}).Where("jti = ?", claims.ID).Count(&count)
				if count > 0 {
					next.ServeHTTP(w, r)
					return
				}
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StaffAuth allows only staff accounts past. Must run after JWTAuth.
func StaffAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(UserContextKey).(*utils.Claims)
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "Unauthorized - No user context",
			})
			return
		}

		if !claims.IsStaff {
			log.WithFields(log.Fields{
				"user_id": claims.UserID,
				"path":    r.URL.Path,
			}).Warn("non-staff user attempted to access admin endpoint")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{
				"error":   "Staff access required",
				"message": "This endpoint requires staff privileges",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func GetUserFromContext(r *http.Request) *utils.Claims {
	if claims, ok := r.Context().Value(UserContextKey).(*utils.Claims); ok {
		return claims
	}
	return nil
}
