package rest

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"typeduel/internal/cache"
	"typeduel/internal/metrics"
	"typeduel/internal/repository"
	"typeduel/internal/service"
	"typeduel/internal/transport/rest/handler"
	"typeduel/internal/transport/rest/middleware"
	"typeduel/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService    *service.AuthService
	Arena          *service.ArenaService
	Store          repository.Store
	Leaderboard    cache.LeaderboardCache // optional
	WSHub          *ws.Hub
	WSHandler      *ws.Handler          // built from WSHub when nil
	Solo           *service.SoloService // optional
	Metrics        *metrics.Collectors  // optional
	AllowedOrigins []string
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	leaderboardHandler := handler.NewLeaderboardHandler(c.Leaderboard)
	profileHandler := handler.NewProfileHandler(c.AuthService, c.Store, c.Leaderboard)
	var soloRuns handler.SoloRecorder
	if c.Solo != nil {
		soloRuns = c.Solo
	}
	soloHandler := handler.NewSoloHandler(soloRuns)
	wsHandler := c.WSHandler
	if wsHandler == nil {
		wsHandler = ws.NewHandler(c.WSHub, c.AuthService, c.Arena, c.AllowedOrigins, nil)
	}

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware(c.AllowedOrigins))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	if c.Metrics != nil {
		r.Handle("/metrics", c.Metrics.Handler()).Methods("GET")
	}

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/ws", wsHandler.ServeWS).Methods("GET")
	v1.HandleFunc("/leaderboard", leaderboardHandler.Top).Methods("GET", "OPTIONS")
	v1.HandleFunc("/matches/{id}", profileHandler.Match).Methods("GET", "OPTIONS")

	// Player routes (require a session token)
	userRoutes := v1.NewRoute().Subrouter()
	userRoutes.Use(authMW.RequireUser)

	userRoutes.HandleFunc("/me", profileHandler.Me).Methods("GET", "OPTIONS")
	userRoutes.HandleFunc("/me/ledger", profileHandler.Ledger).Methods("GET", "OPTIONS")
	userRoutes.HandleFunc("/solo/finish", soloHandler.Finish).Methods("POST", "OPTIONS")

	return r
}

func corsMiddleware(allowed []string) mux.MiddlewareFunc {
	allowAll := len(allowed) == 0
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimSuffix(o, "/")] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case set[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
