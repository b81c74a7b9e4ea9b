package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses, defaults and validates a JSON configuration
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = DefaultHTTPPort
	}
	if cfg.WSPort == 0 {
		cfg.WSPort = DefaultWSPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Performance == nil {
		cfg.Performance = &PerformanceConfig{
			BatchWarnThreshold:   DefaultBatchWarnThreshold,
			RequestWarnThreshold: DefaultRequestWarnThreshold,
		}
	}

	if cfg.Client != nil {
		applyClientDefaults(cfg.Client)
	}
}

// applyClientDefaults sets default values for the remote client section
func applyClientDefaults(client *ClientConfig) {
	if client.RetryMaxAttempts == 0 {
		client.RetryMaxAttempts = DefaultRetryMaxAttempts
	}
	if client.MessageTimeout == 0 {
		client.MessageTimeout = DefaultMessageTimeout
	}
	for i := range client.Endpoints {
		if client.Endpoints[i].Weight == 0 {
			client.Endpoints[i].Weight = DefaultEndpointWeight
		}
		if client.Endpoints[i].Role == "" {
			client.Endpoints[i].Role = DefaultEndpointRole
		}
	}
	if cb := client.CircuitBreaker; cb != nil {
		if cb.FailureThreshold == 0 {
			cb.FailureThreshold = DefaultFailureThreshold
		}
		if cb.RecoveryTimeout == 0 {
			cb.RecoveryTimeout = DefaultRecoveryTimeout
		}
		if cb.HalfOpenMaxRequests == 0 {
			cb.HalfOpenMaxRequests = DefaultHalfOpenMaxRequests
		}
	}
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("httpPort must be between 1 and 65535")
	}

	if cfg.WSPort < 1 || cfg.WSPort > 65535 {
		return fmt.Errorf("wsPort must be between 1 and 65535")
	}

	if cfg.HTTPPort == cfg.WSPort {
		return fmt.Errorf("httpPort and wsPort must differ")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("logLevel must be one of: debug, info, warn, error")
	}

	if cfg.MaxBodySize < 0 {
		return fmt.Errorf("maxBodySize must be non-negative")
	}

	if cfg.RequestTimeout < 0 {
		return fmt.Errorf("requestTimeout must be non-negative")
	}

	if cfg.Performance.BatchWarnThreshold < 0 || cfg.Performance.RequestWarnThreshold < 0 {
		return fmt.Errorf("performance thresholds must be non-negative")
	}

	if cfg.Cache != nil && cfg.Cache.Enabled {
		if cfg.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be positive when cache is enabled")
		}
		if cfg.Cache.Size <= 0 {
			return fmt.Errorf("cache.size must be positive when cache is enabled")
		}
		for tag, ttl := range cfg.Cache.Types {
			if ttl < 0 {
				return fmt.Errorf("cache.types '%s': ttl must be non-negative", tag)
			}
		}
	}

	if cfg.Client != nil {
		if err := validateClient(cfg.Client); err != nil {
			return fmt.Errorf("client: %w", err)
		}
	}

	return nil
}

// validateClient checks the remote client section
func validateClient(client *ClientConfig) error {
	if len(client.Forward) > 0 && len(client.Endpoints) == 0 {
		return errors.New("forward requires at least one endpoint")
	}

	names := make(map[string]bool)
	for i, ep := range client.Endpoints {
		if ep.Name == "" {
			return fmt.Errorf("endpoint[%d]: name is required", i)
		}

		if names[ep.Name] {
			return fmt.Errorf("duplicate endpoint name '%s'", ep.Name)
		}
		names[ep.Name] = true

		if ep.HTTPURL == "" && ep.WSURL == "" {
			return fmt.Errorf("endpoint '%s': at least one of httpUrl or wsUrl is required", ep.Name)
		}

		if ep.Weight <= 0 {
			return fmt.Errorf("endpoint '%s': weight must be positive", ep.Name)
		}

		if ep.Role != RoleMain && ep.Role != RoleFallback {
			return fmt.Errorf("endpoint '%s': role must be 'main' or 'fallback'", ep.Name)
		}
	}

	if client.RetryMaxAttempts < 0 {
		return errors.New("retryMaxAttempts must be non-negative")
	}

	if client.MessageTimeout < 0 {
		return errors.New("messageTimeout must be non-negative")
	}

	if cb := client.CircuitBreaker; cb != nil && cb.Enabled {
		if cb.FailureThreshold < 0 || cb.RecoveryTimeout < 0 || cb.HalfOpenMaxRequests < 0 {
			return errors.New("circuitBreaker values must be non-negative")
		}
	}

	seen := make(map[string]bool)
	for _, tag := range client.Forward {
		if tag == "" {
			return errors.New("forward: empty request type")
		}
		if seen[tag] {
			return fmt.Errorf("forward: duplicate request type '%s'", tag)
		}
		seen[tag] = true
	}

	return nil
}
