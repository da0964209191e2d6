package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hanzhi-dmd/companion/internal/app"
	"github.com/hanzhi-dmd/companion/internal/config"
	"github.com/hanzhi-dmd/companion/internal/httpapi"
	"github.com/hanzhi-dmd/companion/internal/httpapi/handlers"
	"github.com/hanzhi-dmd/companion/internal/jobs"
	"github.com/hanzhi-dmd/companion/internal/logger"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.LogMode == "prod" || cfg.LogMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("build app", "err", err)
	}
	defer a.Close()

	if err := a.Auth.Watch(ctx); err != nil {
		log.Warn("users file watch disabled", "path", cfg.UsersFile, "err", err)
	}
	go a.Portal.RunSweeper(ctx, cfg.ConsultSweepEvery, cfg.ConsultIdleTTL)

	// async analyses are optional; without a broker /analyses answers 503
	var js *jobs.Service
	pub, err := jobs.NewRabbitPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Warn("rabbitmq unavailable, async analyses disabled", "err", err)
	} else {
		defer pub.Close()
		js = jobs.NewService(a.JobsRepo, pub, cfg.AIProvider, "", cfg.Locale, log)
	}

	h := handlers.NewHandler(cfg, a.Store, a.Portal, js, log)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
}
