// Command bucketlens serves a media browser API over an S3-compatible bucket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/koustreak/bucketlens/internal/api"
	"github.com/koustreak/bucketlens/internal/filestore"
	"github.com/koustreak/bucketlens/internal/filestore/minio"
	"github.com/koustreak/bucketlens/internal/listing"
	"github.com/koustreak/bucketlens/internal/logger"
	"github.com/koustreak/bucketlens/internal/settings"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML server settings file")
	flag.Parse()

	srv, err := settings.LoadServer(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bucketlens: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(&srv.Log)

	// --- 1. Storage configuration ---
	provider, err := settings.Load(srv.EnvFile, log)
	if err != nil {
		log.Fatal("load storage configuration: " + err.Error())
	}

	// --- 2. Gateway, rebuilt on every configuration change ---
	gw, err := filestore.NewGateway(minio.Factory(log), provider.Get(), log)
	if err != nil {
		log.Fatal("create storage client: " + err.Error())
	}
	provider.Subscribe(gw.Reconfigure)

	// --- 3. HTTP ---
	svc := listing.New(gw, listing.WithTimeout(srv.Timeout), listing.WithLogger(log))
	httpSrv := &http.Server{
		Addr:    srv.Addr(provider.Port()),
		Handler: api.NewRouter(api.NewHandler(svc, provider), log, srv.StaticDir),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("listening on %s (env file %s)", httpSrv.Addr, provider.Path())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Fatal("serve: " + err.Error())
		}
	case <-ctx.Done():
	}

	// --- 4. Graceful shutdown ---
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), srv.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.With().Err(err).Logger().Error("shutdown did not complete")
	}
}
