package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/VoidMesh/voxelstore/internal/chunk"
	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	World    WorldConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

type DatabaseConfig struct {
	SaveLocation string        `env:"SAVE_LOCATION" envDefault:"./save"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"4"`
	BusyTimeout  time.Duration `env:"DB_BUSY_TIMEOUT" envDefault:"5s"`
}

type WorldConfig struct {
	BufferRadius     int           `env:"WORLD_BUFFER_RADIUS" envDefault:"3"`
	FlushInterval    time.Duration `env:"WORLD_FLUSH_INTERVAL" envDefault:"30s"`
	GenerateInterval time.Duration `env:"WORLD_GENERATE_INTERVAL" envDefault:"1s"`
	Seed             int64         `env:"WORLD_SEED" envDefault:"1"`
	SpawnX           int32         `env:"WORLD_SPAWN_X" envDefault:"0"`
	SpawnY           int32         `env:"WORLD_SPAWN_Y" envDefault:"0"`
	SpawnZ           int32         `env:"WORLD_SPAWN_Z" envDefault:"0"`
	BaseHeight       int32         `env:"WORLD_BASE_HEIGHT" envDefault:"20"`
	WaterLevel       int32         `env:"WORLD_WATER_LEVEL" envDefault:"16"`
}

// Spawn returns the position generation is anchored to at startup.
func (w WorldConfig) Spawn() chunk.Position {
	return chunk.Position{X: w.SpawnX, Y: w.SpawnY, Z: w.SpawnZ}
}

type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL" envDefault:"info"`
	Format     string `env:"LOG_FORMAT" envDefault:"json"`
	Structured bool   `env:"LOG_STRUCTURED" envDefault:"true"`
}

// Load reads the configuration from the environment. Unparsable values are
// errors rather than silently replaced by defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.SaveLocation == "" {
		return fmt.Errorf("SAVE_LOCATION must not be empty")
	}
	if c.Database.MaxOpenConns < 3 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 3, got %d", c.Database.MaxOpenConns)
	}
	if c.World.BufferRadius < 0 {
		return fmt.Errorf("WORLD_BUFFER_RADIUS must not be negative, got %d", c.World.BufferRadius)
	}
	if c.World.FlushInterval <= 0 || c.World.GenerateInterval <= 0 {
		return fmt.Errorf("world intervals must be positive")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text", "logfmt":
	default:
		return fmt.Errorf("LOG_FORMAT must be one of json, text, logfmt, got %q", c.Logging.Format)
	}
	return nil
}
