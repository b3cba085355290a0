package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VoidMesh/voxelstore/internal/api"
	"github.com/VoidMesh/voxelstore/internal/chunk"
	"github.com/VoidMesh/voxelstore/internal/config"
	"github.com/VoidMesh/voxelstore/internal/db"
	"github.com/VoidMesh/voxelstore/internal/terrain"
	"github.com/VoidMesh/voxelstore/internal/world"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", "error", err)
	}

	// Setup logging
	setupLogging(cfg.Logging)
	log.Debug("Configuration loaded", "server_port", cfg.Server.Port, "save_location", cfg.Database.SaveLocation, "log_level", cfg.Logging.Level)

	// Open the chunk store; migrations run on first open
	store, err := db.Open(cfg.Database.SaveLocation, db.Options{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		BusyTimeout:  cfg.Database.BusyTimeout,
	})
	if err != nil {
		log.Fatal("Failed to open chunk store", "error", err, "save_location", cfg.Database.SaveLocation)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Failed to close chunk store", "error", err)
		}
	}()

	codec, err := chunk.NewCodec()
	if err != nil {
		log.Fatal("Failed to create chunk codec", "error", err)
	}
	defer codec.Close()

	// Initialize world
	log.Debug("Initializing world manager", "buffer_radius", cfg.World.BufferRadius)
	manager := world.NewManager(world.StoreAdapter{Store: store}, codec, world.Options{
		BufferRadius: cfg.World.BufferRadius,
	})

	terrainOpts := terrain.DefaultOptions(cfg.World.Seed)
	terrainOpts.BaseHeight = cfg.World.BaseHeight
	terrainOpts.WaterLevel = cfg.World.WaterLevel
	generator := terrain.NewNoiseGenerator(terrainOpts)

	service := world.NewService(manager, generator, world.ServiceConfig{
		FlushInterval:    cfg.World.FlushInterval,
		GenerateInterval: cfg.World.GenerateInterval,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	service.Watch("spawn", cfg.World.Spawn())

	// Initialize API handlers
	handler := api.NewHandler(manager, service, generator)
	router := api.SetupRoutes(handler)
	log.Debug("API routes configured")

	log.Debug("Creating HTTP server", "port", cfg.Server.Port, "read_timeout", cfg.Server.ReadTimeout, "write_timeout", cfg.Server.WriteTimeout, "idle_timeout", cfg.Server.IdleTimeout)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		log.Fatal("Failed to listen", "error", err, "addr", server.Addr)
	}

	log.Info("Starting voxelstore server", "port", cfg.Server.Port)
	if err := serve(ctx, server, listener, service, cfg.Server.ShutdownTimeout); err != nil {
		log.Error("Server exited with error", "error", err)
		return
	}
	log.Info("Server exited")
}

// serve runs the HTTP server and the world service until ctx is cancelled.
// The service is stopped, and so flushes for the last time, only after every
// in-flight request has finished.
func serve(ctx context.Context, server *http.Server, listener net.Listener, service *world.Service, shutdownTimeout time.Duration) error {
	serviceCtx, stopService := context.WithCancel(context.Background())
	defer stopService()

	g, gctx := errgroup.WithContext(ctx)

	// Background generation and flush loops; Run flushes once more on exit
	g.Go(func() error {
		return service.Run(serviceCtx)
	})

	g.Go(func() error {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		log.Debug("Server stopped listening")
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		defer stopService()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Server forced to shutdown", "error", err)
			return err
		}
		log.Debug("Server shutdown completed gracefully")
		return nil
	})

	return g.Wait()
}

func setupLogging(cfg config.LoggingConfig) {
	// Set log level
	switch cfg.Level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Warn("Invalid log level, using info", "level", cfg.Level)
		log.SetLevel(log.InfoLevel)
	}

	// Configure output format
	switch cfg.Format {
	case "json":
		log.SetFormatter(log.JSONFormatter)
	case "logfmt":
		log.SetFormatter(log.LogfmtFormatter)
	default:
		log.SetFormatter(log.TextFormatter)
	}
	if !cfg.Structured {
		log.SetReportCaller(true)
		log.SetReportTimestamp(true)
	}

	// Add service info context
	log.SetPrefix("[voxelstore] ")
}
