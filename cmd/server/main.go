// Package main runs the recording session HTTP server with WebSocket status and graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pocketsafety/backend/config"
	"github.com/pocketsafety/backend/internal/app"
	"github.com/pocketsafety/backend/internal/auth"
	"github.com/pocketsafety/backend/internal/capture"
	"github.com/pocketsafety/backend/internal/events"
	"github.com/pocketsafety/backend/internal/recorder"
	"github.com/pocketsafety/backend/internal/recordings"
	"github.com/pocketsafety/backend/internal/session"
	"github.com/pocketsafety/backend/internal/worker"
	"github.com/pocketsafety/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("open dependencies", zap.Error(err))
	}
	defer deps.Close()

	store := deps.History()

	// Sharing is optional; both the coordinator and the recordings handler see a nil interface without it.
	var recorderSharer recorder.Sharer
	var recordingsSharer recordings.Sharer
	if q := deps.Queue(); q != nil {
		scheduler := worker.NewScheduler(q)
		recorderSharer = scheduler
		recordingsSharer = scheduler
	} else {
		log.Info("sharing disabled: no shares bucket or redis configured")
	}

	device := capture.NewFFmpegDevice(capture.FFmpegConfig{
		Binary:      cfg.Capture.FFmpegPath,
		AudioInput:  cfg.Capture.AudioInput,
		VideoInput:  cfg.Capture.VideoInput,
		OutputDir:   cfg.Capture.TempDir,
		StopTimeout: cfg.Capture.StopTimeout,
	}, log)
	finalizer := recorder.NewFinalizer(deps.Files, recorder.FinalizerConfig{
		SettleDelay:  cfg.Recorder.SettleDelay,
		PollInterval: cfg.Recorder.FinalizePollInterval,
		Deadline:     cfg.Recorder.FinalizeDeadline,
	}, log)
	coord := recorder.NewCoordinator(capture.NewAdapter(device, log), finalizer, store, deps.Files, recorder.Options{
		PollInterval: cfg.Recorder.PollInterval,
		Sharer:       recorderSharer,
	}, log)
	defer coord.Close()

	jwtService := auth.NewJWTService(cfg.Auth.Secret, cfg.Auth.ExpireHours)
	if cfg.Auth.PairingCodeHash == "" {
		log.Warn("PAIRING_CODE_HASH not set; pairing is disabled")
	}
	router := newRouter(jwtService, handlers{
		auth:       auth.NewHandler(jwtService, cfg.Auth.PairingCodeHash, log),
		session:    session.NewHandler(coord, log),
		recordings: recordings.NewHandler(store, recordingsSharer, log),
		events:     events.NewHandler(store, log),
	}, cfg.Server.CORSAllowedOrigins, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.Server.EmbeddedWorker {
		processor, err := deps.ShareProcessor(ctx, store)
		if err != nil {
			log.Warn("embedded share worker disabled", zap.Error(err))
		} else {
			g.Go(func() error {
				log.Info("share worker started")
				processor.Run(gctx)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		log.Error("server", zap.Error(err))
	}
	log.Info("server stopped")
}
