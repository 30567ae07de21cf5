package config

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and an optional config file to produce a
// Config. Flags take precedence over file settings.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	cfg := &Config{
		Method:         "GET",
		Headers:        map[string]string{},
		Load:           true,
		Workers:        1,
		Repetitions:    1,
		Timeout:        30 * time.Second,
		ConnectTimeout: 5 * time.Second,
		LogLevel:       "info",
		ConfigFile:     configPath,
	}
	cfg.Tracing.Protocol = "grpc"
	cfg.Tracing.SampleRate = 1.0

	if configPath != "" {
		cfgViper := viper.New()
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
		if err := cfgViper.Unmarshal(cfg); err != nil {
			return nil, err
		}
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Target = strings.TrimSpace(cfg.Target)
	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}

	return cfg, nil
}

// applyFlagOverrides copies explicitly set flags over file-provided values.
func applyFlagOverrides(cfg *Config, flags *pflag.FlagSet) error {
	var err error
	override := func(name string, apply func() error) {
		if err != nil || !flags.Changed(name) {
			return
		}
		err = apply()
	}

	override("target", func() error { cfg.Target, _ = flags.GetString("target"); return nil })
	override("method", func() error { cfg.Method, _ = flags.GetString("method"); return nil })
	override("header", func() error {
		headers, getErr := flags.GetStringToString("header")
		if getErr != nil {
			return getErr
		}
		for key, value := range headers {
			cfg.Headers[http.CanonicalHeaderKey(key)] = value
		}
		return nil
	})
	override("body", func() error { cfg.Body, _ = flags.GetString("body"); return nil })
	override("payload", func() error { cfg.Payload, _ = flags.GetString("payload"); return nil })
	override("message", func() error { cfg.Message, _ = flags.GetString("message"); return nil })

	override("check", func() error { cfg.Check, _ = flags.GetBool("check"); return nil })
	override("load", func() error { cfg.Load, _ = flags.GetBool("load"); return nil })
	override("workers", func() error { cfg.Workers, _ = flags.GetInt("workers"); return nil })
	override("repetitions", func() error { cfg.Repetitions, _ = flags.GetInt("repetitions"); return nil })
	override("delay", func() error { cfg.Delay, _ = flags.GetDuration("delay"); return nil })
	override("rate", func() error { cfg.Rate, _ = flags.GetInt("rate"); return nil })
	override("timeout", func() error { cfg.Timeout, _ = flags.GetDuration("timeout"); return nil })
	override("connect-timeout", func() error { cfg.ConnectTimeout, _ = flags.GetDuration("connect-timeout"); return nil })

	override("json-output", func() error { cfg.JSONOutput, _ = flags.GetBool("json-output"); return nil })
	override("log-errors", func() error { cfg.LogErrors, _ = flags.GetBool("log-errors"); return nil })
	override("log-level", func() error { cfg.LogLevel, _ = flags.GetString("log-level"); return nil })

	override("trace-endpoint", func() error { cfg.Tracing.Endpoint, _ = flags.GetString("trace-endpoint"); return nil })
	override("trace-protocol", func() error { cfg.Tracing.Protocol, _ = flags.GetString("trace-protocol"); return nil })
	override("trace-sample-rate", func() error { cfg.Tracing.SampleRate, _ = flags.GetFloat64("trace-sample-rate"); return nil })
	override("trace-insecure", func() error { cfg.Tracing.Insecure, _ = flags.GetBool("trace-insecure"); return nil })

	return err
}
