package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/toasterreels/reels/internal/database"
	"github.com/toasterreels/reels/internal/feed"
	"github.com/toasterreels/reels/internal/geoip"
	"github.com/toasterreels/reels/internal/reel"
	"github.com/toasterreels/reels/internal/server"
	"github.com/toasterreels/reels/internal/storage"
	"github.com/toasterreels/reels/internal/store"
)

// Host the built-in sample videos are served from; the feed page's CSP
// must allow it in the local variant.
const sampleMediaHost = "https://commondatastorage.googleapis.com"

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not load .env file: %v", err)
	}

	port := getEnv("PORT", "8080")
	baseURL := getEnv("BASE_URL", "http://localhost:"+port)
	maxUploadBytes := getEnvInt64("MAX_UPLOAD_BYTES", 500*1024*1024)

	// DATABASE_URL selects the variant: unset runs the in-memory feed
	// seeded with sample clips, set runs against Postgres and blob
	// storage.
	databaseURL := os.Getenv("DATABASE_URL")

	var (
		handlerCfg reel.Config
		serverCfg  server.Config
	)
	handlerCfg.BaseURL = baseURL
	handlerCfg.MaxUploadBytes = maxUploadBytes
	serverCfg.BaseURL = baseURL

	if databaseURL == "" {
		mem := store.NewMemory(feed.NewController(feed.SamplePool()))

		handlerCfg.Feed = mem
		handlerCfg.Extender = mem
		handlerCfg.DefaultMuted = false
		handlerCfg.NewSession = func(onProgress func(percent int)) *feed.Session {
			return feed.NewSession(feed.SessionConfig{
				Transfer:   feed.LocalTransfer{},
				Publisher:  mem,
				OnProgress: onProgress,
			})
		}
		serverCfg.MediaHosts = []string{sampleMediaHost}

		log.Println("no DATABASE_URL set, serving the in-memory feed")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		db, err := database.Connect(ctx, databaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()

		if err := db.Migrate(databaseURL); err != nil {
			log.Fatalf("database migration failed: %v", err)
		}
		log.Println("database migrations applied")

		blobs, err := storage.New(ctx, storage.Config{
			Endpoint:       getEnv("S3_ENDPOINT", "http://localhost:3900"),
			PublicEndpoint: os.Getenv("S3_PUBLIC_ENDPOINT"),
			Bucket:         getEnv("S3_BUCKET", "reels"),
			AccessKey:      os.Getenv("S3_ACCESS_KEY"),
			SecretKey:      os.Getenv("S3_SECRET_KEY"),
			Region:         getEnv("S3_REGION", "eu-central-1"),
			MaxUploadBytes: maxUploadBytes,
		})
		if err != nil {
			log.Fatalf("storage initialization failed: %v", err)
		}
		if err := blobs.EnsureBucket(ctx); err != nil {
			log.Fatalf("storage bucket check failed: %v", err)
		}
		log.Println("storage bucket ready")

		geo, err := geoip.New(os.Getenv("GEOIP_DB_PATH"))
		if err != nil {
			log.Fatalf("geoip initialization failed: %v", err)
		}
		defer geo.Close()

		st := store.New(db.Pool, blobs)

		handlerCfg.Feed = st
		handlerCfg.Remote = st
		handlerCfg.Storage = blobs
		handlerCfg.Geo = geo
		handlerCfg.DefaultMuted = true
		handlerCfg.NewSession = func(onProgress func(percent int)) *feed.Session {
			return feed.NewSession(feed.SessionConfig{
				Transfer:       &reel.BlobTransfer{Storage: blobs},
				Publisher:      st,
				RequireShopURL: true,
				OnProgress:     onProgress,
			})
		}

		serverCfg.Pinger = db
		if host := mediaHost(os.Getenv("S3_PUBLIC_ENDPOINT"), os.Getenv("S3_ENDPOINT")); host != "" {
			serverCfg.MediaHosts = []string{host}
		}
	}

	serverCfg.Handler = reel.NewHandler(handlerCfg)
	srv := server.New(serverCfg)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("reels listening on :%s", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-shutdownCh
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}
	log.Println("shutdown complete")
}

func mediaHost(candidates ...string) string {
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
