package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/jeongseonghan/modulation-studio/internal/audio"
	"github.com/jeongseonghan/modulation-studio/internal/config"
	"github.com/jeongseonghan/modulation-studio/internal/server"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "YAML configuration file")
	addr := pflag.StringP("addr", "a", "", "Server address (overrides config)")
	staticDir := pflag.String("static-dir", "", "Static file directory (overrides config)")
	presetsFile := pflag.String("presets", "", "Preset file (overrides config)")
	logLevel := pflag.StringP("log-level", "l", "", "Log level: debug, info, warn, error")
	listDevices := pflag.Bool("list-devices", false, "List audio devices and exit")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("load config", "err", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *staticDir != "" {
		cfg.Server.StaticDir = *staticDir
	}
	if *presetsFile != "" {
		cfg.Simulation.PresetsFile = *presetsFile
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           cfg.LogLevel(),
		Prefix:          "modsim",
	})
	log.SetDefault(logger)

	// Playback devices are optional for the server.
	audioReady := audio.Init() == nil
	if audioReady {
		defer audio.Terminate()
	} else {
		logger.Warn("PortAudio unavailable, device listing disabled")
	}

	if *listDevices {
		if !audioReady {
			log.Fatal("cannot list devices without PortAudio")
		}
		if err := audio.PrintDevices(os.Stdout); err != nil {
			log.Fatal("list devices", "err", err)
		}
		return
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handlers, err := server.NewHandlers(server.Options{
		PresetsFile: cfg.Simulation.PresetsFile,
		DefaultSeed: cfg.Simulation.Seed,
		Loop:        cfg.LoopConfig(),
		Logger:      logger,
		Metrics:     server.NewMetrics(reg),
	})
	if err != nil {
		log.Fatal("create handlers", "err", err)
	}
	srv := server.NewServer(cfg.Server.Addr, handlers, reg, cfg.Server.StaticDir)

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown", "err", err)
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatal("server error", "err", err)
	}
}
