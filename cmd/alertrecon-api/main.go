// alertrecon-api runs the reconciliation engine with its HTTP surface:
// the orchestrator loop in-process plus status, metrics, trigger, rematch
// and runtime-knob endpoints
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"alertrecon/internal/app"
	"alertrecon/internal/platform/config"
	"alertrecon/internal/platform/logger"
	phttp "alertrecon/internal/platform/net/http"
	pmw "alertrecon/internal/platform/net/middleware"
	"alertrecon/internal/services/api"
)

func main() {
	root := config.New()
	apiCfg := root.Prefix("API_")
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, root)
	if err != nil {
		l.Panic().Err(err).Msg("wiring failed")
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(pmw.RequestLogger)
	mux.Use(pmw.RecoverJSON)
	mux.Use(pmw.AccessLog)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: apiCfg.MayCSV("CORS_ORIGINS", []string{"*"}),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r := phttp.AdaptChi(mux)
	api.Mount(r, api.Options{Engine: a.Engine})

	if err := a.Engine.Start(ctx); err != nil {
		l.Panic().Err(err).Msg("engine start failed")
	}
	defer a.Engine.Stop()

	srv := phttp.NewServer(phttp.ServerConfig{
		Addr:         apiCfg.MayString("ADDR", ":4600"),
		ReadTimeout:  apiCfg.MayDuration("READ_TIMEOUT", 0),
		WriteTimeout: apiCfg.MayDuration("WRITE_TIMEOUT", 0),
	}, r, *l)

	if err := srv.Start(ctx); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
