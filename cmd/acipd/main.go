package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethan/acip-discovery/pkg/auth"
	"github.com/ethan/acip-discovery/pkg/config"
	"github.com/ethan/acip-discovery/pkg/logger"
	"github.com/ethan/acip-discovery/pkg/migration"
	"github.com/ethan/acip-discovery/pkg/runtime"
	"github.com/ethan/acip-discovery/pkg/session"
)

func main() {
	fs := flag.NewFlagSet("acipd", flag.ExitOnError)
	logFlags := logger.RegisterFlags(fs)
	envPath := fs.String("env", ".env", "path to an optional .env-style config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "ACIP discovery and session server\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		logger.PrintUsageExamples()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing flags: %v\n", err)
		os.Exit(1)
	}

	logConfig, err := logFlags.ToConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error configuring logger: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()
	logger.SetDefault(log)

	log.Info("starting acipd", "log_config", logFlags.String())

	cfg, err := config.Load(*envPath)
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log.Info("configuration loaded", "listen_addr", cfg.ListenAddr)

	store := session.NewStore(
		auth.PasswordParams{Time: cfg.Argon2Time, Memory: cfg.Argon2MemoryKiB, Threads: cfg.Argon2Threads, KeyLen: cfg.Argon2KeyLen},
		cfg.Argon2VerifyCeiling, cfg.ReplayWindow, cfg.SkewAllowance,
	)

	srv := runtime.New(runtime.Deps{
		Config:      cfg,
		Log:         log,
		Store:       store,
		Limiter:     auth.NewFailureLimiter(cfg.RateLimitPerMinute),
		Coordinator: migration.NewCoordinator(),
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", "signal", sig)
		srv.Stop()
	}()

	go srv.RunScheduler()

	if cfg.WebSocketAddr != "" {
		go func() {
			if err := srv.ListenAndServeWS(cfg.WebSocketAddr); err != nil {
				log.Error("websocket listener exited with error", "error", err)
			}
		}()
	}

	log.Info("acipd listening, press Ctrl+C to stop", "addr", cfg.ListenAddr)
	if err := srv.ListenAndServeTCP(); err != nil {
		log.Error("listener exited with error", "error", err)
		srv.Stop()
		os.Exit(1)
	}

	srv.Wait()
	log.Info("graceful shutdown complete")
}
