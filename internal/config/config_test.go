package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Host != DefaultHost || cfg.HTTPPort != DefaultHTTPPort || cfg.WSPort != DefaultWSPort {
		t.Errorf("listen defaults = %s:%d/%d", cfg.Host, cfg.HTTPPort, cfg.WSPort)
	}
	if got := cfg.GetBatchWarnThresholdDuration(); got != 200*time.Millisecond {
		t.Errorf("batch threshold = %v, want 200ms", got)
	}
	if got := cfg.GetRequestWarnThresholdDuration(); got != 100*time.Millisecond {
		t.Errorf("request threshold = %v, want 100ms", got)
	}
	if cfg.IsCacheEnabled() || cfg.IsPluginsEnabled() || cfg.IsForwardingEnabled() {
		t.Error("optional sections should be disabled by default")
	}
	if got := cfg.GetPluginTimeoutDuration(); got != 30*time.Second {
		t.Errorf("plugin timeout = %v, want 30s", got)
	}
}

func TestParse_ClientDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`{
		"client": {
			"endpoints": [{"name": "a", "httpUrl": "http://a"}],
			"forward": ["QuoteRequest"],
			"circuitBreaker": {"enabled": true}
		},
		"cache": {"enabled": true, "ttl": 60, "size": 10, "types": {"StockRequest": 0, "QuoteRequest": 5}}
	}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	ep := cfg.Client.Endpoints[0]
	if ep.Weight != DefaultEndpointWeight || ep.Role != RoleMain {
		t.Errorf("endpoint defaults = %+v", ep)
	}
	if cfg.Client.RetryMaxAttempts != DefaultRetryMaxAttempts {
		t.Errorf("RetryMaxAttempts = %d", cfg.Client.RetryMaxAttempts)
	}
	if got := cfg.Client.CircuitBreaker.GetRecoveryTimeoutDuration(); got != 30*time.Second {
		t.Errorf("recovery timeout = %v, want 30s", got)
	}
	if !cfg.IsForwardingEnabled() {
		t.Error("forwarding should be enabled")
	}
	if got := cfg.Cache.GetTypeTTLs()["QuoteRequest"]; got != 5*time.Second {
		t.Errorf("QuoteRequest ttl = %v, want 5s", got)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"bad port", `{"httpPort": 70000}`, "httpPort"},
		{"same ports", `{"httpPort": 9000, "wsPort": 9000}`, "must differ"},
		{"bad log level", `{"logLevel": "trace"}`, "logLevel"},
		{"cache without size", `{"cache": {"enabled": true, "ttl": 10}}`, "cache.size"},
		{"endpoint without url", `{"client": {"endpoints": [{"name": "a"}]}}`, "httpUrl or wsUrl"},
		{"duplicate endpoint", `{"client": {"endpoints": [{"name": "a", "httpUrl": "x"}, {"name": "a", "httpUrl": "y"}]}}`, "duplicate endpoint"},
		{"bad role", `{"client": {"endpoints": [{"name": "a", "httpUrl": "x", "role": "backup"}]}}`, "role"},
		{"forward without endpoints", `{"client": {"forward": ["X"]}}`, "at least one endpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.json))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"logLevel": "debug", "httpPort": 9000}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.HTTPPort != 9000 {
		t.Errorf("cfg = %+v", cfg)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for a missing file")
	}
}
