// Package server assembles the HTTP router and the chat gRPC server.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	chathandler "collegovibe/internal/chat/handler"
	"collegovibe/internal/common"
	"collegovibe/internal/feed"
	"collegovibe/internal/logger"
	"collegovibe/internal/media"
	"collegovibe/internal/metrics"
	"collegovibe/internal/story"
	"collegovibe/internal/user"
)

const APIPrefix = "/api/v1"

// Handlers groups every HTTP surface the router mounts.
type Handlers struct {
	Users    *user.Handler
	Feed     *feed.FeedHandlers
	Stories  *story.Handler
	Messages *chathandler.MessageHandlers
	Media    *media.Server
	Metrics  *metrics.Collector
}

// NewRouter mounts the public routes at the root and everything else under
// /api/v1 behind bearer auth. Registration and login stay public.
func NewRouter(h Handlers, issuer *common.TokenIssuer, log zerolog.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(recoverMiddleware(log))
	router.Use(corsMiddleware)
	router.Use(logger.HTTPMiddleware(log))

	router.HandleFunc("/health", healthCheckHandler).Methods(http.MethodGet)
	if h.Metrics != nil {
		router.Handle("/metrics", h.Metrics.Handler()).Methods(http.MethodGet)
	}
	if h.Media != nil {
		h.Media.RegisterRoutes(router)
	}

	api := router.PathPrefix(APIPrefix).Subrouter()
	api.Use(common.HTTPAuth(issuer, APIPrefix+"/register", APIPrefix+"/login"))

	if h.Users != nil {
		h.Users.RegisterRoutes(api)
	}
	if h.Feed != nil {
		h.Feed.RegisterRoutes(api)
	}
	if h.Stories != nil {
		h.Stories.RegisterRoutes(api)
	}
	if h.Messages != nil {
		h.Messages.RegisterRoutes(api)
	}

	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func recoverMiddleware(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panicked")
					common.WriteError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func healthCheckHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "collegovibe"})
}
