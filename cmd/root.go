// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/wirechart/internal/capture"
	"firestige.xyz/wirechart/internal/config"
	"firestige.xyz/wirechart/internal/log"
	"firestige.xyz/wirechart/internal/source/tshark"
)

var (
	// Global flags
	configFile string
	logLevel   string

	cfg *config.GlobalConfig
)

// decoder is the external packet decoder the commands read records from.
type decoder interface {
	capture.RecordReader
	Version(ctx context.Context) (string, error)
}

// newDecoder is swapped out in tests.
var newDecoder = func(c config.DecoderConfig) decoder {
	return tshark.NewReader(c)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wirechart",
	Short: "Wirechart - offline RTPS capture analysis",
	Long: `Wirechart reads a DDS/RTPS packet capture, reconstructs every RTPS frame
with tshark, and reports per topic traffic statistics.

Features:
  - Repair and durable repair detection from HEARTBEAT/ACKNACK history
  - Writer to reader topology per (topic, domain)
  - Wireshark display filters for a topic's endpoints
  - JSON/YAML snapshots queryable with jq expressions`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	defer log.Close()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"override log level (trace/debug/info/warn/error)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(framesCmd)
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(probeCmd)
}

// setup loads the configuration and starts logging before any subcommand.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := loadConfig(configFile, logLevel)
	if err != nil {
		return err
	}
	cfg = loaded
	if err := log.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	return nil
}

func loadConfig(path, level string) (*config.GlobalConfig, error) {
	c, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level != "" {
		c.Log.Level = level
		if err := c.ValidateAndApplyDefaults(); err != nil {
			return nil, err
		}
	}
	return c, nil
}
