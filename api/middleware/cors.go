package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000",                             // local dev
	"https://driveshare-api-4f82c1b7a9d0.herokuapp.com", // backend API
	"https://driveshare-web.vercel.app",                 // web client
}

// CORS returns middleware that applies the API's allowed origin policy.
func CORS() func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   defaultCORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-DS-Token", "Idempotency-Key", "X-Requested-With"},
		ExposedHeaders:   []string{"X-DS-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
