package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var productionOrigins = []string{
	"https://puffingmanual.web.app",
	"https://puffingmanual.firebaseapp.com",
}

var developmentOrigins = []string{
	"http://localhost:5173",
	"http://localhost:5000",
}

// AllowedOrigins returns the browser origins permitted to call the API.
func AllowedOrigins(development bool) []string {
	origins := append([]string(nil), productionOrigins...)
	if development {
		origins = append(origins, developmentOrigins...)
	}
	return origins
}

// CORS allows credentialed cross-origin requests from origins only.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
