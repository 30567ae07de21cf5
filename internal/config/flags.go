package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "netprobe",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target flags
	flags.String("target", "", "Target endpoint: HTTP(S)/WS(S) URL or host:port for raw TCP")
	flags.String("method", "GET", "HTTP method to use")
	flags.StringToString("header", nil, "Additional request header in key=value form")
	flags.String("body", "", "Inline HTTP request body payload")
	flags.String("payload", "", "Raw TCP payload; non-JSON text is wrapped as {message, timestamp}")
	flags.String("message", "", "WebSocket message to send after connecting")

	// Run shape flags
	flags.Bool("check", false, "Perform a single connectivity check and exit")
	flags.Bool("load", true, "Enable concurrent load mode; disabled means one worker, one repetition")
	flags.IntP("workers", "c", 1, "Number of concurrent workers")
	flags.IntP("repetitions", "n", 1, "Probes per worker")
	flags.Duration("delay", 0, "Pause after each probe within a worker (e.g. 250ms)")
	flags.IntP("rate", "r", 0, "Probes per second limit across all workers (0 means unlimited)")
	flags.Duration("timeout", 30*time.Second, "Per-probe timeout")
	flags.Duration("connect-timeout", 5*time.Second, "Socket-level connect timeout")

	// Output flags
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.Bool("log-errors", false, "Log each failed probe to stderr")
	flags.String("log-level", "info", "Log level: debug, info or error")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.String("trace-endpoint", "", "OTLP endpoint for span export (empty disables tracing)")
	flags.String("trace-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.Float64("trace-sample-rate", 1.0, "Trace sampling rate between 0.0 and 1.0")
	flags.Bool("trace-insecure", false, "Disable TLS for the OTLP exporter")
}

func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "netprobe - connectivity probing and load generation")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  netprobe --target <url|host:port> [flags]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Examples:")
	fmt.Fprintln(out, "  netprobe --target https://example.com --check")
	fmt.Fprintln(out, "  netprobe --target https://example.com -c 4 -n 10 --delay 250ms")
	fmt.Fprintln(out, "  netprobe --target 10.0.0.5:9000 --payload 'ping' -c 2 -n 5")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Flags:")
	fmt.Fprintln(out, strings.TrimRight(cmd.Flags().FlagUsages(), "\n"))
}
