package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the telemetry service
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	// Deployment metadata attached to every persisted record
	Region       string
	AgentVersion string

	// Cache and session lifecycle
	MenuTTL            time.Duration
	SessionIdleTimeout time.Duration

	// Rolling-TTFB alert thresholds in milliseconds
	TTFBWarnMs float64
	TTFBCritMs float64

	// WebSocket timing
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Region:         getEnv("REGION", ""),
		AgentVersion:   getEnv("AGENT_VERSION", "1.0.0"),
	}

	menuTTL, err := strconv.Atoi(getEnv("MENU_TTL_SECONDS", "300"))
	if err != nil {
		return nil, fmt.Errorf("invalid MENU_TTL_SECONDS: %w", err)
	}
	config.MenuTTL = time.Duration(menuTTL) * time.Second

	idleTimeout, err := strconv.Atoi(getEnv("SESSION_IDLE_TIMEOUT", "600"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_IDLE_TIMEOUT: %w", err)
	}
	config.SessionIdleTimeout = time.Duration(idleTimeout) * time.Second

	config.TTFBWarnMs, err = strconv.ParseFloat(getEnv("TTFB_WARN_MS", "1500"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TTFB_WARN_MS: %w", err)
	}
	config.TTFBCritMs, err = strconv.ParseFloat(getEnv("TTFB_CRIT_MS", "3000"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TTFB_CRIT_MS: %w", err)
	}

	wsReadTimeout, err := strconv.Atoi(getEnv("WS_READ_TIMEOUT", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_READ_TIMEOUT: %w", err)
	}
	config.WSReadTimeout = time.Duration(wsReadTimeout) * time.Second

	wsWriteTimeout, err := strconv.Atoi(getEnv("WS_WRITE_TIMEOUT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_WRITE_TIMEOUT: %w", err)
	}
	config.WSWriteTimeout = time.Duration(wsWriteTimeout) * time.Second

	// Derived WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 512

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return config, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
