// Package cmd provides CLI command implementations
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ChrisMcGann/MSSim/pkg/config"
	"github.com/ChrisMcGann/MSSim/pkg/logging"
)

var (
	cfgFile string

	// v holds file, environment and flag settings for every command
	v = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "mssim",
	Short: "MSSim - virtual tandem mass spectrometry simulator",
	Long: `MSSim simulates LC-MS/MS acquisitions in silico. A scan engine renders
scans from a set of eluting chemicals while a fragmentation controller
(Top-N, scheduled Top-N, ROI or DIA) decides what to acquire next.

Features:
- Data-dependent and data-independent acquisition strategies
- Chemicals from YAML datasets or MSP and SpectraST spectral libraries
- Empirical scan durations and intensity noise
- Run output to SQLite databases`,
	Version:       "0.3.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./mssim.yaml or ~/.config/mssim/mssim.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log as JSON")
	v.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	v.BindPFlag("logging.json", rootCmd.PersistentFlags().Lookup("log-json"))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(windowsCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(configCmd)
}

func initConfig() {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("mssim")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "mssim"))
		}
	}

	config.BindEnv(v)

	if err := v.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", v.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Warning: failed to read config %s: %v\n", cfgFile, err)
	}
}

// loadConfig decodes and validates the merged configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cfg.Logging.JSON, nil)
}
