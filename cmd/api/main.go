package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nyayaflow/api/internal/app"
	"nyayaflow/api/internal/archive"
	"nyayaflow/api/internal/config"
	"nyayaflow/api/internal/directory"
	"nyayaflow/api/internal/drafthistory"
	"nyayaflow/api/internal/export"
	"nyayaflow/api/internal/gather"
	"nyayaflow/api/internal/roles"
	"nyayaflow/api/internal/session"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		log.Fatal("GOOGLE_API_KEY is required")
	}

	var gatewayOpts []roles.Option
	if strings.TrimSpace(cfg.GeminiModel) != "" {
		gatewayOpts = append(gatewayOpts, roles.WithModel(cfg.GeminiModel))
	}
	gateway, err := roles.NewGemini(ctx, cfg.GeminiAPIKey, gatewayOpts...)
	if err != nil {
		log.Fatalf("generation backend init failed: %v", err)
	}

	var sessions session.Store
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for workflow sessions")
		redisStore, err := session.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		sessions = redisStore
	} else {
		log.Printf("Using in-memory workflow sessions")
		sessions = session.NewMemoryStore()
	}
	defer sessions.Close()

	var sources []gather.Source
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		kb := gather.NewKnowledgeBase(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer kb.Close()
		sources = append(sources, kb)
	}
	if strings.TrimSpace(cfg.WebSearchURL) != "" {
		sources = append(sources, gather.NewWebSearch(cfg.WebSearchURL, cfg.WebSearchAPIKey, cfg.WebSearchResults))
	}
	gatherer := gather.NewService(sources...)

	var history *drafthistory.Service
	if strings.TrimSpace(cfg.ReposDir) != "" {
		if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
			log.Fatalf("failed to create repos dir: %v", err)
		}
		history = drafthistory.New(cfg.ReposDir)
	}

	var advocates *directory.Directory
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		advocates, err = directory.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("advocate directory connection failed: %v", err)
		}
		defer advocates.Close()
		if err := advocates.EnsureSchema(ctx); err != nil {
			log.Fatalf("advocate directory schema failed: %v", err)
		}
	}

	var archiveSvc *archive.Service
	if strings.TrimSpace(cfg.ArchiveEndpoint) != "" {
		archiveSvc, err = archive.New(ctx, archive.Config{
			Endpoint:  cfg.ArchiveEndpoint,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
			Bucket:    cfg.ArchiveBucket,
			UseSSL:    cfg.ArchiveUseSSL,
		})
		if err != nil {
			log.Fatalf("archive storage init failed: %v", err)
		}
	}

	service := app.New(cfg, sessions, gateway, gatherer, history, advocates, archiveSvc)
	httpServer := app.NewHTTPServer(service, export.New(), cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("NyayaFlow API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
