// Package config provides the unified configuration system for the Optiply
// target. It defines a single BaseConfig structure that every connector
// instance uses, so the CLI, the pipeline and the destination all read the
// same shape.
//
// The configuration is organized into logical sections:
//   - Timeouts: Connection and operation timeouts
//   - Reliability: Retry behavior for transient failures
//   - Security: Credentials for the remote API
//   - Observability: Metrics, tracing, logging
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BaseConfig is the single unified configuration structure used by all
// connector instances.
type BaseConfig struct {
	// Name identifies the connector instance
	Name string `yaml:"name" json:"name"`
	// Type specifies the connector type (e.g., "optiply")
	Type string `yaml:"type" json:"type"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version"`

	// Timeouts define various timeout durations
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`

	// Reliability settings for error handling and resilience
	Reliability ReliabilityConfig `yaml:"reliability" json:"reliability"`

	// Security configuration for authentication and credentials
	Security SecurityConfig `yaml:"security" json:"security"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// TimeoutConfig contains all timeout-related settings.
// These prevent operations from hanging indefinitely.
type TimeoutConfig struct {
	// Request timeout for individual HTTP calls
	Request time.Duration `yaml:"request" json:"request"`
	// Connection timeout for establishing connections
	Connection time.Duration `yaml:"connection" json:"connection"`
	// Idle timeout before closing inactive connections
	Idle time.Duration `yaml:"idle" json:"idle"`
	// KeepAlive interval for connection health checks
	KeepAlive time.Duration `yaml:"keep_alive" json:"keep_alive"`
}

// ReliabilityConfig contains reliability and error handling settings.
// Retries apply only to transient failures (5xx responses and timeouts).
type ReliabilityConfig struct {
	// RetryAttempts sets maximum attempts for a failed request
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts"`
	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
	// RetryMultiplier increases delay exponentially
	RetryMultiplier float64 `yaml:"retry_multiplier" json:"retry_multiplier"`
	// MaxRetryDelay caps the maximum retry delay
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" json:"max_retry_delay"`
	// FailFast stops on the first per-record error instead of continuing
	FailFast bool `yaml:"fail_fast" json:"fail_fast"`
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	// EnableTLS enables TLS/SSL encryption
	EnableTLS bool `yaml:"enable_tls" json:"enable_tls"`
	// TLSSkipVerify disables certificate verification (insecure)
	TLSSkipVerify bool `yaml:"tls_skip_verify" json:"tls_skip_verify"`
	// AuthType specifies authentication method (oauth2_password, basic)
	AuthType string `yaml:"auth_type" json:"auth_type"`
	// Credentials stores authentication credentials (use env vars in production)
	Credentials map[string]string `yaml:"credentials" json:"credentials"`
}

// ObservabilityConfig contains monitoring and observability settings.
type ObservabilityConfig struct {
	// EnableMetrics activates metrics collection
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// EnableTracing activates distributed tracing
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
}

// NewBaseConfig creates a new BaseConfig with sensible defaults.
// Specific connectors can override these defaults as needed.
func NewBaseConfig(name, connectorType string) *BaseConfig {
	return &BaseConfig{
		Name:    name,
		Type:    connectorType,
		Version: "1.0.0",
		Timeouts: TimeoutConfig{
			Request:    30 * time.Second,
			Connection: 10 * time.Second,
			Idle:       5 * time.Minute,
			KeepAlive:  30 * time.Second,
		},
		Reliability: ReliabilityConfig{
			RetryAttempts:   5,
			RetryDelay:      time.Second,
			RetryMultiplier: 2.0,
			MaxRetryDelay:   60 * time.Second,
			FailFast:        false,
		},
		Security: SecurityConfig{
			EnableTLS:     true,
			TLSSkipVerify: false,
			Credentials:   make(map[string]string),
		},
		Observability: ObservabilityConfig{
			EnableMetrics:     true,
			EnableTracing:     false,
			LogLevel:          "info",
			TracingSampleRate: 0.1,
		},
	}
}

// Validate validates the configuration for correctness.
// Connectors should call this after loading configuration to catch errors early.
func (bc *BaseConfig) Validate() error {
	if bc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if bc.Type == "" {
		return fmt.Errorf("type is required")
	}
	if bc.Reliability.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts cannot be negative")
	}
	if bc.Reliability.RetryMultiplier < 1 {
		return fmt.Errorf("retry_multiplier must be at least 1")
	}
	return nil
}

// HasCredentials returns true if credentials are configured
func (s *SecurityConfig) HasCredentials() bool {
	return len(s.Credentials) > 0
}

// Load reads a YAML configuration file into config. ${VAR} references are
// replaced with environment variable values before parsing, so credentials
// can stay out of the file itself.
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the CLI flag
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	content := substituteEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// substituteEnvVars replaces ${VAR_NAME} occurrences with the value of the
// named environment variable. Unset variables expand to the empty string.
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		content = content[:start] + os.Getenv(content[start+2:end]) + content[end+1:]
	}
	return content
}
