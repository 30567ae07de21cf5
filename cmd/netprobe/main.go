package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/torosent/netprobe/internal/config"
	"github.com/torosent/netprobe/internal/controller"
	"github.com/torosent/netprobe/internal/logging"
	"github.com/torosent/netprobe/internal/metrics"
	"github.com/torosent/netprobe/internal/output"
	"github.com/torosent/netprobe/internal/probe"
	"github.com/torosent/netprobe/internal/tracing"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logging.SetVerbosity(cfg.LogLevel)
	logger := logging.NewLogger("netprobe")

	target, err := buildTarget(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		_ = provider.Shutdown(context.Background())
	}()

	ctrl := controller.New(logger).WithProbeFactory(func(t probe.Target, opts probe.Options) (probe.Probe, error) {
		p, err := probe.New(t, opts)
		if err != nil {
			return nil, err
		}
		if cfg.LogErrors {
			p = probe.WithLogging(p, logging.NewLogger("probe"))
		}
		return tracing.WrapProbe(p, provider, t), nil
	})

	if cfg.Check {
		return runCheck(ctx, ctrl, target, cfg)
	}
	return runLoad(ctx, ctrl, target, cfg)
}

// runCheck performs the single-probe connectivity check.
func runCheck(ctx context.Context, ctrl *controller.RunController, target probe.Target, cfg *config.Config) error {
	outcome := ctrl.CheckConnectivity(ctx, target)

	if cfg.JSONOutput {
		snapshot := metrics.Snapshot{Total: 1, Completed: 1, Terminal: true, Outcome: &outcome}
		if outcome.Accepted() {
			snapshot.Succeeded = 1
		} else {
			snapshot.Failed = 1
		}
		if err := output.PrintJSONReport(os.Stdout, snapshot); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(os.Stdout, "%s: %s\n", target, outcome)
	}

	if !outcome.Accepted() {
		return fmt.Errorf("connectivity check failed: %s", outcome)
	}
	return nil
}

// runLoad executes a full run, streaming progress and printing a final report.
func runLoad(ctx context.Context, ctrl *controller.RunController, target probe.Target, cfg *config.Config) error {
	settings := controller.Settings{
		Enabled:        cfg.Load,
		Workers:        cfg.Workers,
		Repetitions:    cfg.Repetitions,
		Delay:          cfg.Delay,
		Timeout:        cfg.Timeout,
		ConnectTimeout: cfg.ConnectTimeout,
		RatePerSecond:  cfg.Rate,
	}

	snapshots, err := ctrl.Start(ctx, target, settings)
	if err != nil {
		return err
	}

	var final metrics.Snapshot
	for s := range snapshots {
		if s.Terminal {
			final = s
			continue
		}
		if !cfg.JSONOutput {
			fmt.Fprint(os.Stdout, output.FormatProgress(s))
		}
	}
	if !cfg.JSONOutput {
		fmt.Fprintln(os.Stdout)
	}

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(os.Stdout, final); err != nil {
			return err
		}
	} else {
		output.PrintReport(os.Stdout, final)
	}

	if final.Err != nil {
		return final.Err
	}
	if final.Failed > 0 {
		return fmt.Errorf("%d probes failed", final.Failed)
	}
	return nil
}

// buildTarget maps the flat config surface onto a typed probe target.
func buildTarget(cfg *config.Config) (probe.Target, error) {
	target, err := probe.ParseTarget(cfg.Target)
	if err != nil {
		return probe.Target{}, err
	}

	switch target.Kind {
	case probe.KindHTTP:
		target = probe.NewHTTPTarget(target.URL, cfg.Method, cfg.Headers, cfg.Body)
	case probe.KindTCP:
		target.Payload = cfg.Payload
	case probe.KindWebSocket:
		target.Headers = cfg.Headers
		target.Message = cfg.Message
	}
	return target, nil
}
