package middleware

import (
	"net/http"
	"strings"
)

// AuthCookie is set by the login handler.
const AuthCookie = "authenticated"

// protectedPrefixes need the auth cookie. Device, viewer, override and
// auth endpoints stay open.
var protectedPrefixes = []string{"/api/", "/logs/"}

// AuthMiddleware checks that the caller is logged in (cookie 'authenticated=true')
// for the protected paths.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		protected := false
		for _, p := range protectedPrefixes {
			if strings.HasPrefix(r.URL.Path, p) {
				protected = true
				break
			}
		}
		if !protected {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(AuthCookie)
		if err != nil || cookie.Value != "true" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
