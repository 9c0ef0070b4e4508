package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"replay-proxy/internal/adapters/httpmsg"
	"replay-proxy/internal/adapters/keygen"
	"replay-proxy/internal/adapters/pubsub"
	"replay-proxy/internal/adapters/storage/file"
	"replay-proxy/internal/adapters/storage/memory"
	cfgpkg "replay-proxy/internal/infrastructure/config"
	httpapi "replay-proxy/internal/infrastructure/httpapi"
	obs "replay-proxy/internal/infrastructure/observability"
	"replay-proxy/internal/infrastructure/tlscert"
	"replay-proxy/internal/usecase"
)

func main() {
	cfg, err := cfgpkg.Load()
	logger := obs.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger.Info().Str("addr", cfg.Addr).Int("endpoints", len(cfg.Endpoints)).Str("version", obs.Version).Msg("starting replay-proxy")
	for _, ep := range cfg.Endpoints {
		logger.Info().Str("endpoint", ep.Key).Str("prefix", ep.Prefix).Str("target", ep.Target).Bool("forward", ep.Forward).Bool("record", ep.Record).Msg("endpoint configured")
	}
	httpmsg.MaxBodyBytes = int64(cfg.BodyMaxBytes)

	metrics := obs.NewMetrics()
	bus := pubsub.NewBus()
	store := memory.NewStore()
	keys := keygen.MethodPath{IgnoreQuery: cfg.IgnoreQuery}
	stats := usecase.NewStatsService(store, keys, bus, logger)
	recorder := usecase.NewScenarioRecorder(store, file.NewScenarioWriter(), logger)
	monitor := httpapi.NewMonitorHub(bus, stats.Dump, logger)
	defer monitor.Close()

	deps := &httpapi.Deps{
		Cfg:        cfg,
		Logger:     logger,
		Metrics:    metrics,
		Bus:        bus,
		Stats:      stats,
		Recorder:   recorder,
		Playback:   store,
		Keys:       keys,
		Transports: httpmsg.NewTransports(cfg.InsecureTLS),
		Monitor:    monitor,
	}
	handler := httpapi.NewRouter(deps)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Optional TLS listener with HTTP/2 (net/http enables h2 by default under TLS).
	var tlsSrv *http.Server
	if cfg.TLSEnabled() {
		tlsSrv = &http.Server{
			Addr:              cfg.TLSAddr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		certFile, keyFile := cfg.TLSCertFile, cfg.TLSKeyFile
		if certFile == "" || keyFile == "" {
			ca, err := loadAuthority(cfg)
			if err != nil {
				logger.Fatal().Err(err).Msg("tls certificate authority")
			}
			tlsSrv.TLSConfig = ca.TLSConfig()
			certFile, keyFile = "", ""
		}
		go func() {
			logger.Info().Str("addr", cfg.TLSAddr).Msg("starting TLS server (HTTP/2 enabled)")
			if err := tlsSrv.ListenAndServeTLS(certFile, keyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("tls server error")
				os.Exit(1)
			}
		}()
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// an open recording would be lost on exit
	if active, title := recorder.Recording(); active {
		outputDir := ""
		if cfg.WriteScenarios {
			outputDir = cfg.ScenarioOutputDir
		}
		sc, err := recorder.FinishRecording(ctx, outputDir)
		if err != nil {
			logger.Error().Err(err).Str("title", title).Msg("closing recording failed")
		} else {
			logger.Info().Str("scenario", sc.ID).Str("file", sc.File).Int("exchanges", len(sc.Exchanges)).Msg("recording closed on shutdown")
		}
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	if tlsSrv != nil {
		if err := tlsSrv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("tls server shutdown error")
		}
	}
	logger.Info().Msg("replay-proxy stopped")
}

// loadAuthority reads the configured CA or generates a development one and writes its
// certificate to TLSCAOut for clients to trust.
func loadAuthority(cfg cfgpkg.Config) (*tlscert.Authority, error) {
	if cfg.TLSCACert != "" && cfg.TLSCAKey != "" {
		return tlscert.LoadFiles(cfg.TLSCACert, cfg.TLSCAKey)
	}
	ca, _, err := tlscert.GenerateDev("replay-proxy development CA", 1)
	if err != nil {
		return nil, err
	}
	if cfg.TLSCAOut != "" {
		if err := os.WriteFile(cfg.TLSCAOut, ca.CertPEM(), 0o644); err != nil {
			return nil, err
		}
	}
	return ca, nil
}
