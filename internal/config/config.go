// Package config defines the run configuration surface and loads it from
// flags and config files.
package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/torosent/netprobe/internal/tracing"
)

// Config is the full caller-facing configuration of one invocation.
type Config struct {
	// Target surface. Target is an HTTP(S)/WS(S) URL or a bare host:port
	// pair, which selects raw TCP mode.
	Target  string            `mapstructure:"target"`
	Method  string            `mapstructure:"method"`
	Headers map[string]string `mapstructure:"headers"`
	Body    string            `mapstructure:"body"`
	Payload string            `mapstructure:"payload"` // raw TCP payload
	Message string            `mapstructure:"message"` // websocket message

	// Run shape. Load=false is equivalent to one worker, one repetition.
	Check       bool          `mapstructure:"check"`
	Load        bool          `mapstructure:"load"`
	Workers     int           `mapstructure:"workers"`
	Repetitions int           `mapstructure:"repetitions"`
	Delay       time.Duration `mapstructure:"delay"`
	Rate        int           `mapstructure:"rate"`

	Timeout        time.Duration `mapstructure:"timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`

	JSONOutput bool   `mapstructure:"json_output"`
	LogErrors  bool   `mapstructure:"log_errors"`
	LogLevel   string `mapstructure:"log_level"`
	ConfigFile string `mapstructure:"-"`

	Tracing tracing.Config `mapstructure:"tracing"`
}

// ValidationError aggregates everything wrong with a configuration.
type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

// Issues returns the individual validation failures.
func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

var validMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// Validate rejects invalid settings before anything reaches the engine.
// Values are rejected, never silently clamped.
func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.Target) == "" {
		issues = append(issues, "target is required (use --help for usage information)")
	}

	if c.Workers < 1 {
		issues = append(issues, fmt.Sprintf("workers must be >= 1, got %d", c.Workers))
	}
	if c.Repetitions < 1 {
		issues = append(issues, fmt.Sprintf("repetitions must be >= 1, got %d", c.Repetitions))
	}
	if c.Delay < 0 {
		issues = append(issues, fmt.Sprintf("delay must be >= 0, got %s", c.Delay))
	}
	if c.Rate < 0 {
		issues = append(issues, fmt.Sprintf("rate must be >= 0, got %d", c.Rate))
	}

	if c.Timeout <= 0 {
		issues = append(issues, fmt.Sprintf("timeout must be > 0, got %s", c.Timeout))
	}
	if c.ConnectTimeout < 0 {
		issues = append(issues, fmt.Sprintf("connect-timeout must be >= 0, got %s", c.ConnectTimeout))
	}
	if c.ConnectTimeout > 0 && c.Timeout > 0 && c.ConnectTimeout > c.Timeout {
		issues = append(issues, "connect-timeout must not exceed timeout")
	}

	method := strings.ToUpper(strings.TrimSpace(c.Method))
	if method != "" && !validMethods[method] {
		issues = append(issues, fmt.Sprintf("unsupported HTTP method %q", c.Method))
	}

	for key, value := range c.Headers {
		if strings.TrimSpace(key) == "" || strings.ContainsAny(key, "\r\n") {
			issues = append(issues, fmt.Sprintf("invalid header key %q", key))
		}
		if strings.ContainsAny(value, "\r\n") {
			issues = append(issues, fmt.Sprintf("invalid header value for %q", key))
		}
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}
