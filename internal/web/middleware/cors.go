package middleware

import "net/http"

// CORS header values sent on every response.
const (
	AllowOrigin  = "*"
	AllowMethods = "GET, POST, OPTIONS"
	AllowHeaders = "Content-Type"
)

// CORS returns middleware that adds permissive CORS headers to every
// response and answers preflight requests itself.
// This is safe because the server is a local development tool.
func CORS() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", AllowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", AllowMethods)
			w.Header().Set("Access-Control-Allow-Headers", AllowHeaders)

			// Preflight gets a bare 200 and never reaches the file system.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
