// Command gateway runs the FreeRouter HTTP proxy: it loads the built-in
// defaults, overlays an optional config file, and serves the OpenAI-
// compatible chat completions surface described in SPEC_FULL.md.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freerouter/gateway/internal/config"
	"github.com/freerouter/gateway/internal/gateway"
)

func main() {
	snap := config.Default()

	if path := config.ConfigPath(); path != "" {
		fc, err := config.LoadFile(path)
		if err != nil {
			log.Fatalf("gateway: loading config %s: %v", path, err)
		}
		snap = config.Merge(snap, fc)
		log.Printf("gateway: loaded config from %s", path)
	}

	store := config.NewStore(snap)
	auth := config.NewEnvAuthSource()

	gw, err := gateway.NewGateway(store, auth)
	if err != nil {
		log.Fatalf("gateway: building gateway: %v", err)
	}

	mux := http.NewServeMux()
	gw.RegisterRoutes(mux)

	addr := fmt.Sprintf("%s:%d", store.Load().Host, store.Load().Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streaming responses can run far longer than any fixed write deadline
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("gateway: listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("gateway: serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("gateway: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("gateway: graceful shutdown failed: %v", err)
		os.Exit(1)
	}
}
