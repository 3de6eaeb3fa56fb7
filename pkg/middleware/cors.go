package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS restricts browser clients to the configured dashboard origins. The
// pipeline agent posts server-to-server and never sends an Origin header,
// so it is unaffected.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           600,
	})

	return c.Handler
}
