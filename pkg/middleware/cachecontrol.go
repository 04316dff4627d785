package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// CacheControl marks GET and HEAD responses as publicly cacheable
// for maxAge. Stored image names are never reused, so the content is also
// flagged immutable. A non-positive maxAge disables the header.
func CacheControl(maxAge time.Duration) func(http.Handler) http.Handler {
	if maxAge <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	value := "public, max-age=" + strconv.Itoa(int(maxAge.Seconds())) + ", immutable"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				w.Header().Set("Cache-Control", value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
