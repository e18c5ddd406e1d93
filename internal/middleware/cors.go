package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS 允许任意来源访问，预检请求直接返回 204
func CORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:       []string{"*"},
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:       []string{"Content-Type", "Accept", "X-Request-Id"},
		OptionsSuccessStatus: http.StatusNoContent,
		MaxAge:               300,
	})
}
