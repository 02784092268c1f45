// Package cli implements the bridge command line.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-bridge/internal/config"
	"github.com/telhawk-systems/telhawk-bridge/internal/logging"
	natsclient "github.com/telhawk-systems/telhawk-bridge/internal/messaging/nats"
)

var (
	cfgFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "bridge",
	Short: "TelHawk CDC bridge",
	Long: `bridge consumes change-data-capture messages from NATS JetStream,
normalizes them into flat records and serves the recent window to
reporting tools such as Power BI.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or /etc/telhawk/bridge/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json, yaml")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(recordsCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logging.Logger {
	return logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("bridge"))
}

func natsConfig(cfg *config.Config) natsclient.Config {
	nc := natsclient.DefaultConfig()
	nc.URL = cfg.NATS.URL
	if cfg.NATS.Name != "" {
		nc.Name = cfg.NATS.Name
	}
	nc.MaxReconnects = cfg.NATS.MaxReconnects
	if cfg.NATS.ReconnectWait > 0 {
		nc.ReconnectWait = cfg.NATS.ReconnectWait
	}
	if cfg.NATS.Timeout > 0 {
		nc.Timeout = cfg.NATS.Timeout
	}
	nc.Username = cfg.NATS.Username
	nc.Password = cfg.NATS.Password
	nc.Token = cfg.NATS.Token
	return nc
}

func consumerConfig(cfg *config.Config) natsclient.ConsumerConfig {
	cc := natsclient.DefaultConsumerConfig(cfg.Stream.Consumer, cfg.Stream.Subject)
	if cfg.Stream.AckWait > 0 {
		cc.AckWait = cfg.Stream.AckWait
	}
	return cc
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}
