package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the agent desk
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	// CRM endpoints and credential
	APIBaseURL    string
	WSBaseURL     string
	AgentID       int
	AuthToken     string
	AuthTokenFile string
	HTTPTimeout   time.Duration

	// Notification channel
	ReconnectBase        time.Duration
	ReconnectCap         time.Duration
	ReconnectMaxAttempts int
	HeartbeatTimeout     time.Duration

	// Workspace
	CallbackLookahead    time.Duration
	QueueRefreshInterval time.Duration
	StatsPeriod          string
	DefaultShippingCost  float64
	ShippingRates        map[string]float64
	PhoneRegion          string
	SoundMinInterval     time.Duration

	// UI feed websocket
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
		Port:           getEnv("PORT", "7070"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		APIBaseURL:     strings.TrimSuffix(getEnv("API_BASE_URL", "http://localhost:8000"), "/"),
		WSBaseURL:      strings.TrimSuffix(getEnv("WS_BASE_URL", ""), "/"),
		AuthToken:      getEnv("AUTH_TOKEN", ""),
		AuthTokenFile:  getEnv("AUTH_TOKEN_FILE", ""),
		PhoneRegion:    strings.ToUpper(getEnv("PHONE_REGION", "MA")),
		StatsPeriod:    getEnv("STATS_PERIOD", "today"),
	}

	if config.WSBaseURL == "" {
		config.WSBaseURL = toWebSocketURL(config.APIBaseURL)
	}

	if raw := getEnv("AGENT_ID", ""); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid AGENT_ID: %q", raw)
		}
		config.AgentID = id
	}

	durations := []struct {
		key   string
		def   string
		field *time.Duration
	}{
		{"HTTP_TIMEOUT", "10s", &config.HTTPTimeout},
		{"RECONNECT_BASE", "1s", &config.ReconnectBase},
		{"RECONNECT_CAP", "30s", &config.ReconnectCap},
		{"HEARTBEAT_TIMEOUT", "45s", &config.HeartbeatTimeout},
		{"CALLBACK_LOOKAHEAD", "30m", &config.CallbackLookahead},
		{"QUEUE_REFRESH_INTERVAL", "60s", &config.QueueRefreshInterval},
		{"SOUND_MIN_INTERVAL", "2s", &config.SoundMinInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.field = v
	}
	if config.ReconnectCap < config.ReconnectBase {
		return nil, fmt.Errorf("RECONNECT_CAP (%v) must not be below RECONNECT_BASE (%v)", config.ReconnectCap, config.ReconnectBase)
	}

	maxAttempts, err := strconv.Atoi(getEnv("RECONNECT_MAX_ATTEMPTS", "10"))
	if err != nil || maxAttempts < 0 {
		return nil, fmt.Errorf("invalid RECONNECT_MAX_ATTEMPTS: %q", getEnv("RECONNECT_MAX_ATTEMPTS", "10"))
	}
	config.ReconnectMaxAttempts = maxAttempts

	shipping, err := strconv.ParseFloat(getEnv("DEFAULT_SHIPPING_COST", "35"), 64)
	if err != nil || shipping < 0 {
		return nil, fmt.Errorf("invalid DEFAULT_SHIPPING_COST: %q", getEnv("DEFAULT_SHIPPING_COST", "35"))
	}
	config.DefaultShippingCost = shipping

	rates, err := parseRates(getEnv("SHIPPING_RATES", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid SHIPPING_RATES: %w", err)
	}
	config.ShippingRates = rates

	// Parse WebSocket timeouts
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

	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 512

	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return config, nil
}

// parseRates reads "City=cost,City=cost" pairs
func parseRates(raw string) (map[string]float64, error) {
	rates := make(map[string]float64)
	if strings.TrimSpace(raw) == "" {
		return rates, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		city, cost, ok := strings.Cut(pair, "=")
		city = strings.TrimSpace(city)
		if !ok || city == "" {
			return nil, fmt.Errorf("malformed pair %q", pair)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(cost), 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("bad cost for %s: %q", city, cost)
		}
		rates[city] = v
	}
	return rates, nil
}

// toWebSocketURL converts http:// to ws:// and https:// to wss://
func toWebSocketURL(base string) string {
	if strings.HasPrefix(base, "http") {
		return "ws" + strings.TrimPrefix(base, "http")
	}
	return base
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
