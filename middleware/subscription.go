package middleware

import (
	"net/http"
	"strings"

	"pagepilot-go/models"

	"gorm.io/gorm"
)

// Paths that stay reachable with an expired subscription, so the redirect
// target itself (and logout, and the admin surface) never loop.
var subscriptionAllowedPaths = []string{
	"/subscription-expired",
	"/logout",
	"/portal/admin",
}

// SubscriptionGate redirects users with an expired subscription to the
// subscription-expired page before the handler runs. Anonymous requests
// and users without a profile pass through untouched. Pure decision, no
// side effects.
func SubscriptionGate(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserFromContext(r)
			if claims == nil {
				next.ServeHTTP(w, r)
				return
			}

			for _, path := range subscriptionAllowedPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			var profile models.Profile
			if err := db.Where("user_id = ?", claims.UserID).First(&profile).Error; err != nil {
				next.ServeHTTP(w, r)
				return
			}

			if !profile.IsSubscriptionActive() {
				http.Redirect(w, r, "/subscription-expired", http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
