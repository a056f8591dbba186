package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds configuration for the musicbridge process and its MCP front end.
type Config struct {
	// CDP connection settings
	CDPAddress    string
	CDPPort       int
	EvalTimeoutMS int

	// HTTP API
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	// Routing
	RelayTimeoutMS int
	HintFile       string
	// EventLogDir receives a JSONL journal of router events; empty disables it.
	EventLogDir    string

	// Control window
	PanelURL     string
	PanelWidth   int
	PanelHeight  int
	WindowPollMS int

	// Browser launch
	LaunchBrowser bool
	ProfileDir    string

	// Logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:       getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:          getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9222),
		EvalTimeoutMS:    getEnvIntOrDefault("MUSICBRIDGE_EVAL_TIMEOUT_MS", 1500),
		BindAddr:         getEnvOrDefault("MUSICBRIDGE_BIND_ADDR", "127.0.0.1:8188"),
		PortCandidates:   getEnvListOrDefault("MUSICBRIDGE_PORT_CANDIDATES", []string{"127.0.0.1:8189", "127.0.0.1:8190", "127.0.0.1:8191"}),
		PortAutoFallback: getEnvBoolOrDefault("MUSICBRIDGE_PORT_AUTO_FALLBACK", true),
		RelayTimeoutMS:   getEnvIntOrDefault("MUSICBRIDGE_RELAY_TIMEOUT_MS", 2000),
		HintFile:         os.Getenv("MUSICBRIDGE_HINT_FILE"),
		EventLogDir:      os.Getenv("MUSICBRIDGE_EVENT_LOG_DIR"),
		PanelURL:         os.Getenv("MUSICBRIDGE_PANEL_URL"),
		PanelWidth:       getEnvIntOrDefault("MUSICBRIDGE_PANEL_WIDTH", 275),
		PanelHeight:      getEnvIntOrDefault("MUSICBRIDGE_PANEL_HEIGHT", 150),
		WindowPollMS:     getEnvIntOrDefault("MUSICBRIDGE_WINDOW_POLL_MS", 1000),
		LaunchBrowser:    getEnvBoolOrDefault("MUSICBRIDGE_LAUNCH_BROWSER", false),
		ProfileDir:       getEnvOrDefault("MUSICBRIDGE_BROWSER_PROFILE_DIR", "./data/browser-profile"),
		LogLevel:         strings.ToLower(getEnvOrDefault("MUSICBRIDGE_LOG_LEVEL", "info")),
		LogFile:          getEnvOrDefault("MUSICBRIDGE_LOG_FILE", "logs/musicbridge.log"),
	}
	if _, set := os.LookupEnv("MUSICBRIDGE_HINT_FILE"); !set {
		cfg.HintFile = "./data/last_service.json"
	}

	if cfg.EvalTimeoutMS < 250 {
		cfg.EvalTimeoutMS = 250
	}
	if cfg.RelayTimeoutMS < 100 {
		cfg.RelayTimeoutMS = 100
	}
	if cfg.WindowPollMS < 100 {
		cfg.WindowPollMS = 100
	}
	// A page evaluation runs inside one relay round trip.
	if cfg.EvalTimeoutMS > cfg.RelayTimeoutMS {
		cfg.EvalTimeoutMS = cfg.RelayTimeoutMS
	}
	if cfg.PanelWidth <= 0 || cfg.PanelHeight <= 0 {
		return nil, fmt.Errorf("config: panel size must be positive, got %dx%d", cfg.PanelWidth, cfg.PanelHeight)
	}
	return cfg, nil
}

// CDPURL returns the CDP HTTP endpoint.
func (c *Config) CDPURL() string {
	return "http://" + c.CDPAddress + ":" + strconv.Itoa(c.CDPPort)
}

// ControlPanelURL returns the configured panel URL, or the panel served by
// the API on addr.
func (c *Config) ControlPanelURL(addr string) string {
	if c.PanelURL != "" {
		return c.PanelURL
	}
	return "http://" + addr + "/panel"
}

func (c *Config) EvalTimeout() time.Duration {
	return time.Duration(c.EvalTimeoutMS) * time.Millisecond
}

func (c *Config) RelayTimeout() time.Duration {
	return time.Duration(c.RelayTimeoutMS) * time.Millisecond
}

func (c *Config) WindowPoll() time.Duration {
	return time.Duration(c.WindowPollMS) * time.Millisecond
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
