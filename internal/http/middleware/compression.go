// Package middleware provides the chi middleware stack of the HTTP shell.
package middleware

import (
	"net/http"
	"strings"
)

// EventsPath is the player state event stream.
const EventsPath = "/api/v1/events"

// SkipCompressionForSSE wraps a compression middleware so that event
// streams are written unbuffered. Compression breaks per-event flushing.
func SkipCompressionForSSE(compressionHandler func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		compressed := compressionHandler(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.Header.Get("Accept"), "text/event-stream") || r.URL.Path == EventsPath {
				next.ServeHTTP(w, r)
				return
			}
			compressed.ServeHTTP(w, r)
		})
	}
}
