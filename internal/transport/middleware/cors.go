package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS answers preflight requests and allows the configured origins. An
// origin list of "*" allows any origin and echoes it back.
func CORS(allowedOrigins string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods:       []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:       []string{"Authorization", "Content-Type", TraceHeader},
		ExposedHeaders:       []string{"Content-Disposition", TraceHeader},
		MaxAge:               300,
		OptionsSuccessStatus: http.StatusNoContent,
	}

	var origins []string
	allowAll := false
	for _, o := range strings.Split(allowedOrigins, ",") {
		o = strings.TrimSpace(o)
		switch o {
		case "":
		case "*":
			allowAll = true
		default:
			origins = append(origins, o)
		}
	}
	if allowAll {
		opts.AllowOriginFunc = func(r *http.Request, origin string) bool { return true }
	} else {
		opts.AllowedOrigins = origins
	}

	return cors.Handler(opts)
}
