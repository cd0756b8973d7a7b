package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shehryarbajwa/camdroid/internal/pairing"
	"github.com/shehryarbajwa/camdroid/internal/ratelimit"
)

// UploadRoutes configures the LAN-facing upload server
func (h *Handler) UploadRoutes() *mux.Router {
	r := mux.NewRouter()

	// No rate limiting here; the sender paces itself
	r.HandleFunc(pairing.UploadPath, h.Upload).Methods("POST")

	return r
}

// ControlRoutes configures the local control API
func (h *Handler) ControlRoutes(live http.Handler, rateLimiter *ratelimit.Limiter) *mux.Router {
	r := mux.NewRouter()

	// API v1 routes
	api := r.PathPrefix("/v1").Subrouter()

	// Apply rate limiting middleware to state-changing endpoints
	rateLimitedAPI := api.PathPrefix("").Subrouter()
	rateLimitedAPI.Use(RateLimitMiddleware(rateLimiter))

	rateLimitedAPI.HandleFunc("/pairing", h.CreatePairing).Methods("POST")
	rateLimitedAPI.HandleFunc("/disconnect", h.Disconnect).Methods("POST")
	rateLimitedAPI.HandleFunc("/receiver-id", h.SetReceiverID).Methods("PUT")

	// Read endpoints (not rate limited - frequent polling)
	api.HandleFunc("/pairing/qr.png", h.GetPairingQR).Methods("GET")
	api.HandleFunc("/session", h.GetSession).Methods("GET")
	api.HandleFunc("/frame", h.GetLatestFrame).Methods("GET")
	api.Handle("/live", live).Methods("GET")

	r.Use(accessLogMiddleware)
	r.Use(corsMiddleware)

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
