package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Kanskikuro/dat640-project/internal/catalog"
	"github.com/Kanskikuro/dat640-project/internal/server"
	"github.com/Kanskikuro/dat640-project/internal/store"
)

func main() {
	ctx := context.Background()

	port := getenv("PORT", "8081")
	redisURL := os.Getenv("REDIS_URL")
	databaseURL := os.Getenv("DATABASE_URL")
	catalogPath := os.Getenv("CATALOG_DB")

	// Playlist store: Postgres when configured, in-memory otherwise.
	var st store.Store
	if databaseURL != "" {
		pool, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			log.Fatalf("musiccrs: invalid DATABASE_URL: %v", err)
		}
		defer pool.Close()
		if err := store.AutoMigrate(ctx, pool); err != nil {
			log.Fatalf("musiccrs: migrate: %v", err)
		}
		st = store.NewPGStore(pool)
		log.Printf("musiccrs: using postgres playlist store")
	} else {
		st = store.NewMemStore()
		log.Printf("musiccrs: using in-memory playlist store")
	}

	// Track catalog for title-only adds, optional.
	var cat *catalog.Catalog
	if catalogPath != "" {
		var err error
		cat, err = catalog.Open(catalogPath)
		if err != nil {
			log.Fatalf("musiccrs: open catalog: %v", err)
		}
		defer cat.Close()
	}

	// Redis fan-out across instances, optional.
	var rdb *redis.Client
	if redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatalf("musiccrs: invalid REDIS_URL: %v", err)
		}
		rdb = redis.NewClient(opt)
		defer rdb.Close()
	}

	hub := server.NewHub()
	srv := server.NewServer(hub, st, cat, rdb, ctx)

	go hub.Run()
	if rdb != nil {
		go srv.RunRedisSubscriber()
	}

	r := srv.Router(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	log.Printf("musiccrs listening on :%s", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("musiccrs: %v", err)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
