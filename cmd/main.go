package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"planesnearby/internal/adsbfi"
	"planesnearby/internal/api"
	"planesnearby/internal/config"
	"planesnearby/internal/coordinator"
	"planesnearby/internal/ha"
	pkgha "planesnearby/pkg/ha"
	"planesnearby/pkg/plugin"

	// Register plugins
	_ "planesnearby/internal/plugins/alerts"
	_ "planesnearby/internal/plugins/countsensor"
	_ "planesnearby/internal/plugins/geomarkers"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found, using environment variables")
	}

	haURL := os.Getenv("HA_URL")
	haToken := os.Getenv("HA_TOKEN")
	readOnly := os.Getenv("READ_ONLY") == "true"

	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		configDir = "config"
	}

	apiPort := 8081
	if portStr := os.Getenv("API_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			logger.Fatal("Invalid API_PORT", zap.String("value", portStr), zap.Error(err))
		}
		apiPort = port
	}

	if haURL == "" || haToken == "" {
		logger.Fatal("HA_URL and HA_TOKEN environment variables must be set")
	}

	logger.Info("Starting Planes Nearby",
		zap.String("url", haURL),
		zap.Bool("read_only", readOnly))

	// Load configuration
	loader := config.NewLoader(configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	cfg := loader.Get()

	// Create HA client
	client := ha.NewClient(haURL, haToken, logger)

	// Connect to Home Assistant
	if err := client.Connect(); err != nil {
		logger.Fatal("Failed to connect to Home Assistant", zap.Error(err))
	}
	defer client.Disconnect()

	logger.Info("Connected to Home Assistant")

	// The location entity may appear later (e.g. a device_tracker that has
	// not reported yet), so a failed check is not fatal.
	if err := config.ValidateWithHA(cfg, client); err != nil {
		logger.Warn("Location entity check failed", zap.Error(err))
	}

	// Create ADSB.fi client
	fetcher := adsbfi.NewClient(adsbfi.Config{
		BaseURL: cfg.ADSBBaseURL,
		Timeout: cfg.RequestTimeout(),
		Logger:  logger,
	})

	// Create and start the polling coordinator
	coord := coordinator.New(client, fetcher,
		coordinator.Options{
			LocationEntityID: cfg.LocationEntityID,
			DistanceNM:       cfg.DistanceNM,
		},
		coordinator.Config{
			UpdateInterval: cfg.UpdateInterval(),
			FetchTimeout:   cfg.RequestTimeout(),
		},
		logger)

	if err := coord.Start(); err != nil {
		logger.Fatal("Failed to start coordinator", zap.Error(err))
	}
	defer coord.Stop()

	// Create and start plugins
	pluginCtx := plugin.NewContext(pkgha.WrapClient(client), coord, cfg, logger, readOnly)

	plugins, err := plugin.CreateAll(pluginCtx)
	if err != nil {
		logger.Fatal("Failed to create plugins", zap.Error(err))
	}

	started := make([]plugin.Plugin, 0, len(plugins))
	for _, p := range plugins {
		if err := p.Start(); err != nil {
			logger.Error("Failed to start plugin",
				zap.String("plugin", p.Name()),
				zap.Error(err))
			continue
		}
		logger.Info("Plugin started", zap.String("plugin", p.Name()))
		started = append(started, p)
	}

	// Start the HTTP API server
	apiServer := api.NewServer(coord, logger, apiPort)
	if err := apiServer.Start(); err != nil {
		logger.Fatal("Failed to start API server", zap.Error(err))
	}

	// Setup signal handling for graceful shutdown and config reload
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	logger.Info("Application running. Press Ctrl+C to exit.")
	if readOnly {
		logger.Info("Tracking aircraft in READ-ONLY mode...")
	} else {
		logger.Info("Tracking aircraft...")
	}

	for sig := range sigChan {
		if sig != syscall.SIGHUP {
			break
		}

		// SIGHUP reloads the config file; a bad file keeps the old options
		logger.Info("Reloading configuration")
		if err := loader.Load(); err != nil {
			logger.Error("Config reload failed, keeping previous configuration", zap.Error(err))
			continue
		}

		newCfg := loader.Get()
		if err := config.ValidateWithHA(newCfg, client); err != nil {
			logger.Warn("Location entity check failed", zap.Error(err))
		}

		coord.SetOptions(coordinator.Options{
			LocationEntityID: newCfg.LocationEntityID,
			DistanceNM:       newCfg.DistanceNM,
		})
	}

	logger.Info("Shutting down gracefully...")

	if err := apiServer.Stop(); err != nil {
		logger.Error("Failed to stop API server", zap.Error(err))
	}

	// Stop plugins in reverse start order
	for i := len(started) - 1; i >= 0; i-- {
		started[i].Stop()
	}
}
