package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/EmpoweredVote/precinct-data/internal/api"
	"github.com/EmpoweredVote/precinct-data/internal/config"
	"github.com/EmpoweredVote/precinct-data/internal/db"
	"github.com/EmpoweredVote/precinct-data/internal/middleware"
	"github.com/EmpoweredVote/precinct-data/internal/pipeline"
)

func main() {
	_ = godotenv.Load(".env.local")

	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[server] invalid config: %v", err)
	}

	conn, err := db.Open(cfg.Database)
	if err != nil {
		log.Fatalf("[server] %v", err)
	}
	defer db.Close(conn)

	store, err := pipeline.NewStore(conn)
	if err != nil {
		log.Fatalf("[server] %v", err)
	}
	if err := store.AutoMigrate(); err != nil {
		log.Fatalf("[server] %v", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(middleware.RateLimit(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))
	r.Mount("/", api.SetupRoutes(pipeline.New(store)))

	log.Printf("[server] listening on port :%s...", cfg.Server.Port)
	if err := http.ListenAndServe("0.0.0.0:"+cfg.Server.Port, r); err != nil {
		log.Printf("[server] %v", err)
	}
}
