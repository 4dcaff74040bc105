package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr       string `env:"HTTP_ADDR" envDefault:":8080"`
	LogMode        string `env:"LOG_MODE" envDefault:"dev"`
	DefaultSession string `env:"DEFAULT_SESSION" envDefault:"Alpha-7"`
	MaxPlayers     int    `env:"MAX_PLAYERS" envDefault:"20"`
	ChatHistory    int    `env:"CHAT_HISTORY" envDefault:"50"`
	ActivityFeed   int    `env:"ACTIVITY_FEED" envDefault:"20"`
	SendBuffer     int    `env:"SEND_BUFFER" envDefault:"256"`
	AdminJWTSecret string `env:"ADMIN_JWT_SECRET"`
	AllowedOrigin  string `env:"ALLOWED_ORIGIN" envDefault:"*"`
}

// Load reads an optional .env file, then parses the environment.
func Load(files ...string) (Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load(files...)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.MaxPlayers <= 0 {
		return Config{}, fmt.Errorf("MAX_PLAYERS must be positive, got %d", cfg.MaxPlayers)
	}
	if cfg.SendBuffer <= 0 {
		return Config{}, fmt.Errorf("SEND_BUFFER must be positive, got %d", cfg.SendBuffer)
	}
	return cfg, nil
}
