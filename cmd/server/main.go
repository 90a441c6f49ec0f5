package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/fallcrate/milestone-web/config"
	"github.com/fallcrate/milestone-web/internal/achievements"
	"github.com/fallcrate/milestone-web/internal/api"
	"github.com/fallcrate/milestone-web/internal/auth"
	"github.com/fallcrate/milestone-web/internal/database"
	"github.com/fallcrate/milestone-web/internal/models"
	"github.com/fallcrate/milestone-web/internal/services"
	"github.com/fallcrate/milestone-web/internal/storage"
	"github.com/fallcrate/milestone-web/internal/storage/jsonserver"
	"github.com/fallcrate/milestone-web/internal/storage/memory"
	"github.com/fallcrate/milestone-web/internal/storage/sqlite"
	"github.com/fallcrate/milestone-web/internal/websocket"
)

// newStore selects the storage driver from config.
func newStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		store, err := sqlite.NewStore(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		if err := store.SeedCatalog(sqlite.DefaultCatalog(cfg.Game.ID)); err != nil {
			return nil, err
		}
		return store, nil
	case "jsonserver":
		interval := time.Duration(cfg.Store.PollInterval) * time.Second
		return jsonserver.NewStore(cfg.Store.URL, interval), nil
	case "memory":
		store := memory.NewStore()
		store.SeedCatalog(cfg.Game.ID, sqlite.DefaultCatalog(cfg.Game.ID))
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Store.Driver)
	}
}

func reachableStates(cfg *config.Config) achievements.StateSet {
	states := make([]models.UnlockState, 0, len(cfg.Game.ReachableStates))
	for _, raw := range cfg.Game.ReachableStates {
		state := models.UnlockState(raw)
		if !state.Valid() {
			log.Fatalf("Invalid reachable state in config: %q", raw)
		}
		states = append(states, state)
	}
	if len(states) == 0 {
		return achievements.DefaultReachableStates()
	}
	return achievements.NewStateSet(states...)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := newStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	usersDB, err := database.NewDB(cfg.Auth.UsersPath)
	if err != nil {
		log.Fatalf("Failed to initialize user database: %v", err)
	}
	defer usersDB.Close()

	userService := services.NewUserService(usersDB)

	hub := websocket.NewHub()
	go hub.Run()

	lifecycle := achievements.NewLifecycle(store, hub)
	merger := achievements.NewMerger(store)
	manager := achievements.NewManager(store, lifecycle, merger, cfg.Game.ID, reachableStates(cfg))

	authHandler := auth.NewHandler(cfg.Auth.SessionSecret, userService, manager)

	r := mux.NewRouter()
	r.Use(authHandler.Middleware)

	// Identity routes
	r.HandleFunc("/login", authHandler.LoginHandler).Methods("POST")
	r.HandleFunc("/register", authHandler.RegisterHandler).Methods("POST")
	r.HandleFunc("/logout", authHandler.LogoutHandler).Methods("POST")

	// API routes
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	api.RegisterRoutes(apiRouter, manager)

	// WebSocket routes
	websocket.RegisterRoutes(r, hub)

	// CORS setup for the widget frontend
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := c.Handler(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	log.Printf("🏆 Milestone widget server starting on port %s", port)
	log.Printf("🗄️ Storage driver: %s", cfg.Store.Driver)

	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
