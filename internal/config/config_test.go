package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default values",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "7070" {
					t.Errorf("expected port 7070, got %s", cfg.Port)
				}
				if cfg.LogLevel != "info" {
					t.Errorf("expected log level info, got %s", cfg.LogLevel)
				}
				if cfg.ReconnectBase != time.Second || cfg.ReconnectCap != 30*time.Second {
					t.Errorf("expected 1s/30s backoff, got %v/%v", cfg.ReconnectBase, cfg.ReconnectCap)
				}
				if cfg.ReconnectMaxAttempts != 10 {
					t.Errorf("expected 10 max attempts, got %d", cfg.ReconnectMaxAttempts)
				}
				if cfg.CallbackLookahead != 30*time.Minute {
					t.Errorf("expected 30m lookahead, got %v", cfg.CallbackLookahead)
				}
				if cfg.WSBaseURL != "ws://localhost:8000" {
					t.Errorf("expected derived ws url, got %s", cfg.WSBaseURL)
				}
				if cfg.AgentID != 0 {
					t.Errorf("expected no agent id, got %d", cfg.AgentID)
				}
			},
		},
		{
			name: "custom values",
			env: map[string]string{
				"PORT":                   "9000",
				"LOG_LEVEL":              "debug",
				"API_BASE_URL":           "https://crm.example.com/",
				"AGENT_ID":               "42",
				"RECONNECT_BASE":         "500ms",
				"RECONNECT_CAP":          "10s",
				"RECONNECT_MAX_ATTEMPTS": "3",
				"DEFAULT_SHIPPING_COST":  "40.5",
				"PHONE_REGION":           "fr",
				"ALLOWED_ORIGINS":        "http://example.com, http://test.com",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.APIBaseURL != "https://crm.example.com" {
					t.Errorf("expected trimmed api url, got %s", cfg.APIBaseURL)
				}
				if cfg.WSBaseURL != "wss://crm.example.com" {
					t.Errorf("expected wss url, got %s", cfg.WSBaseURL)
				}
				if cfg.AgentID != 42 {
					t.Errorf("expected agent 42, got %d", cfg.AgentID)
				}
				if cfg.ReconnectBase != 500*time.Millisecond || cfg.ReconnectCap != 10*time.Second {
					t.Errorf("unexpected backoff %v/%v", cfg.ReconnectBase, cfg.ReconnectCap)
				}
				if cfg.ReconnectMaxAttempts != 3 {
					t.Errorf("expected 3 max attempts, got %d", cfg.ReconnectMaxAttempts)
				}
				if cfg.DefaultShippingCost != 40.5 {
					t.Errorf("expected shipping 40.5, got %v", cfg.DefaultShippingCost)
				}
				if cfg.PhoneRegion != "FR" {
					t.Errorf("expected region FR, got %s", cfg.PhoneRegion)
				}
				if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://test.com" {
					t.Errorf("unexpected allowed origins %v", cfg.AllowedOrigins)
				}
			},
		},
		{
			name:    "invalid AGENT_ID",
			env:     map[string]string{"AGENT_ID": "abc"},
			wantErr: true,
		},
		{
			name:    "invalid RECONNECT_BASE",
			env:     map[string]string{"RECONNECT_BASE": "soon"},
			wantErr: true,
		},
		{
			name:    "cap below base",
			env:     map[string]string{"RECONNECT_BASE": "10s", "RECONNECT_CAP": "1s"},
			wantErr: true,
		},
		{
			name:    "negative max attempts",
			env:     map[string]string{"RECONNECT_MAX_ATTEMPTS": "-1"},
			wantErr: true,
		},
		{
			name: "shipping rates",
			env:  map[string]string{"SHIPPING_RATES": "Casablanca=20, Rabat = 30"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.ShippingRates["Casablanca"] != 20 || cfg.ShippingRates["Rabat"] != 30 {
					t.Errorf("unexpected rates %v", cfg.ShippingRates)
				}
			},
		},
		{
			name:    "malformed SHIPPING_RATES",
			env:     map[string]string{"SHIPPING_RATES": "Casablanca:20"},
			wantErr: true,
		},
		{
			name:    "invalid WS_READ_TIMEOUT",
			env:     map[string]string{"WS_READ_TIMEOUT": "invalid"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			cfg, err := Load()

			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestWebSocketConstants(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.PongWait != cfg.WSReadTimeout {
		t.Errorf("PongWait (%v) should equal WSReadTimeout (%v)", cfg.PongWait, cfg.WSReadTimeout)
	}
	if cfg.PingPeriod >= cfg.PongWait {
		t.Errorf("PingPeriod (%v) should be less than PongWait (%v)", cfg.PingPeriod, cfg.PongWait)
	}
	if cfg.WriteWait != cfg.WSWriteTimeout {
		t.Errorf("WriteWait (%v) should equal WSWriteTimeout (%v)", cfg.WriteWait, cfg.WSWriteTimeout)
	}
}
