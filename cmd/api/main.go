package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/z-novel-studio/internal/client"
	"github.com/zhouzirui/z-novel-studio/internal/config"
	"github.com/zhouzirui/z-novel-studio/internal/handler"
	"github.com/zhouzirui/z-novel-studio/internal/service/generation"
	sessionService "github.com/zhouzirui/z-novel-studio/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store := client.NewStoreClient(cfg.Store.BaseURL, cfg.Store.Timeout)

	// Ark 凭证优先使用进程内模型链，否则回退到远程生成服务。
	var generator generation.Generator
	if cfg.AI.Enabled() {
		arkSvc, err := generation.NewArkService(ctx, cfg.AI)
		if err != nil {
			log.Fatalf("failed to initialize ark generation service: %v", err)
		}
		generator = arkSvc
		log.Println("generation: using in-process ark model chain")
	} else if cfg.Generation.Enabled() {
		generator = client.NewGenClient(cfg.Generation.BaseURL, cfg.Generation.Timeout)
		log.Printf("generation: using remote service at %s", cfg.Generation.BaseURL)
	} else {
		log.Fatal("no generation backend configured: set ARK_API_KEY + Model or GENERATION_BASE_URL")
	}

	sessions := sessionService.NewService(store, generator)
	router := handler.NewRouter(sessions)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Z Novel Studio backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
