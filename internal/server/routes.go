package server

import (
	"net/http"

	"github.com/example/multiplayer-trader/internal/auth"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Routes builds the HTTP surface: health checks, the websocket endpoint and
// the admin API guarded by adminAuth.
func (gs *GameServer) Routes(adminAuth *auth.AdminConfig) *mux.Router {
	r := mux.NewRouter()

	// CORS first so preflight requests never reach a handler.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", gs.opts.AllowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		zap.L().Debug("health check", zap.String("remote", r.RemoteAddr))
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/ws", gs.HandleWS)

	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(adminAuth.AuthMiddleware)
	protected.HandleFunc("/sessions", gs.HandleListSessions).Methods(http.MethodGet)
	protected.HandleFunc("/sessions/{name}", gs.HandleGetSession).Methods(http.MethodGet)

	return r
}
