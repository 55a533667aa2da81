package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/MSSim/pkg/config"
	"github.com/ChrisMcGann/MSSim/pkg/environment"
	"github.com/ChrisMcGann/MSSim/pkg/massspec"
	"github.com/ChrisMcGann/MSSim/pkg/metrics"
	"github.com/ChrisMcGann/MSSim/pkg/writer/sqlite"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate an acquisition",
	Long: `Simulate an LC-MS/MS acquisition of a dataset with the configured
fragmentation controller and store the scans in a SQLite database.

Examples:
  # Top-N run over a YAML dataset with constant scan durations
  mssim run --dataset chems.yaml --out run.db

  # Hybrid schedule from a config file, empirical durations, metrics endpoint
  mssim run --config sim.yaml --sampler durations.yaml --metrics-addr :9090

  # ROI run seeded from a spectral library
  mssim run --dataset library.msp --controller roi --max-time 1800 --out roi.db`,
	RunE: runSimulation,
}

func init() {
	flags := runCmd.Flags()
	flags.StringP("dataset", "d", "", "Chemical dataset (.yaml) or spectral library (.msp, .sptxt)")
	flags.StringP("sampler", "s", "", "Scan duration sampler file (.yaml)")
	flags.StringP("out", "o", "", "Output database file")
	flags.String("controller", "", "Controller: idle, simple_ms1, topn, hybrid, roi, tree")
	flags.Float64("min-time", 0, "Start of the simulated run in seconds")
	flags.Float64("max-time", 0, "End of the simulated run in seconds")
	flags.Bool("noise", false, "Add intensity and background noise")
	flags.String("metrics-addr", "", "Serve prometheus metrics on this address during the run")

	for key, flag := range map[string]string{
		"run.dataset":         "dataset",
		"run.sampler.path":    "sampler",
		"output.path":         "out",
		"controller.type":     "controller",
		"run.min_time":        "min-time",
		"run.max_time":        "max-time",
		"mass_spec.add_noise": "noise",
		"metrics.addr":        "metrics-addr",
	} {
		v.BindPFlag(key, flags.Lookup(flag))
	}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	chemicals, err := loadChemicals(cfg, cfg.Run.Dataset)
	if err != nil {
		return err
	}
	s, err := loadSampler(cfg)
	if err != nil {
		return err
	}
	polarity, err := cfg.MassSpec.ParsedPolarity()
	if err != nil {
		return err
	}
	engineCfg, err := cfg.MassSpec.Engine()
	if err != nil {
		return err
	}
	engineCfg.Logger = logger
	engine, err := massspec.New(polarity, chemicals, s, engineCfg)
	if err != nil {
		return fmt.Errorf("failed to create scan engine: %w", err)
	}
	ctrl, err := cfg.Controller.Build(cfg.MassSpec, logger)
	if err != nil {
		return err
	}

	fmt.Printf("Simulating %s from %.1f to %.1f s\n", cfg.Run.Dataset, cfg.Run.MinTime, cfg.Run.MaxTime)
	fmt.Printf("Chemicals: %d\n", len(chemicals))
	fmt.Printf("Controller: %s\n", cfg.Controller.Type)
	if cfg.Run.Sampler.Path != "" {
		fmt.Printf("Sampler: %s\n", cfg.Run.Sampler.Path)
	} else {
		fmt.Printf("Scan durations: MS1 %.3f s, MS2 %.3f s\n", cfg.Run.Sampler.MS1Duration, cfg.Run.Sampler.MS2Duration)
	}

	if cfg.Metrics.Addr != "" {
		stop, err := serveMetrics(cfg.Metrics.Addr, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	opts := []environment.Option{
		environment.WithLogger(logger),
		environment.WithProgress(progressPrinter()),
	}
	var writer *sqlite.Writer
	if cfg.Output.Path != "" {
		writer, err = sqlite.NewWriter(cfg.Output.Path,
			sqlite.WithPeakFilter(cfg.Output.Peaks),
			sqlite.WithDescription(cfg.Output.Description),
		)
		if err != nil {
			return fmt.Errorf("failed to create output database: %w", err)
		}
		opts = append(opts, environment.WithSerializer(writer))
	}

	env, err := environment.New(engine, ctrl, cfg.Run.MinTime, cfg.Run.MaxTime, opts...)
	if err != nil {
		return err
	}

	runErr := env.Run()
	if writer != nil {
		if err := writer.Close(); err != nil && runErr == nil {
			runErr = err
		}
	}

	printSummary(env.Output())
	if runErr != nil {
		return fmt.Errorf("run %s failed: %w", env.RunID(), runErr)
	}
	if cfg.Output.Path != "" {
		fmt.Printf("Wrote run %s to %s\n", env.RunID(), cfg.Output.Path)
	}
	return nil
}

// progressPrinter reports every 10% of simulated time.
func progressPrinter() environment.ProgressFunc {
	next := 0.1
	return func(now, minTime, maxTime float64) {
		frac := (now - minTime) / (maxTime - minTime)
		for frac >= next && next <= 1 {
			fmt.Printf("  %3.0f%% (%.1f s)\n", next*100, now)
			next += 0.1
		}
	}
}

func printSummary(out *environment.Output) {
	if out == nil || out.Scans == nil {
		return
	}
	fmt.Printf("\nRun %s (%s)\n", out.RunID, out.Controller)
	for _, level := range out.Scans.Levels() {
		fmt.Printf("  MS%d scans: %d\n", level, len(out.Scans.Level(level)))
	}
	fmt.Printf("  Precursors fragmented: %d\n", len(out.Precursors))
	fmt.Printf("  Fragmentation events: %d\n", len(out.FragmentationEvents))
}

// serveMetrics exposes the mssim collectors until the returned stop is called.
func serveMetrics(addr string, logger *slog.Logger) (func(), error) {
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", slog.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server exited", slog.Any("error", err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
	}, nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out, err := config.WriteYAML(*cfg)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}
