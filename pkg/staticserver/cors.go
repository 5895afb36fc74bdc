package staticserver

import (
	"fmt"
	"net/http"
)

// corsHeaders are added to every response, whatever its status.
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
	"Access-Control-Allow-Headers": "*",
}

// corsMiddleware sets the CORS headers before anything else touches the
// response so they precede the header terminator on every code path,
// including unmatched routes and error pages.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for k, v := range corsHeaders {
			h.Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}

// unsupportedMethod answers methods the file handler does not implement.
func unsupportedMethod(w http.ResponseWriter, r *http.Request) {
	http.Error(
		w,
		fmt.Sprintf("Unsupported method ('%s')", r.Method),
		http.StatusNotImplemented)
}
