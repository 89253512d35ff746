package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/myuser/lexkv/internal/config"
	"github.com/myuser/lexkv/internal/engine"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "lexkv",
	Short: "An embedded sorted key-value store",
	Long: `An embedded key-value store with a sorted index, lazy TTL
expiration, snapshot-isolated transactions, and a write-ahead log that
is replayed at startup. Commands are read line by line from stdin.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "config file path (TOML)")
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.NewDefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Warn("metrics listener stopped", zap.Error(err))
			}
		}()
		logger.Info("serving metrics", zap.String("addr", cfg.MetricsAddr))
	}

	eng, err := engine.Open(cfg.WALPath(), cfg.BTreeDegree, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	return runConsole(eng, os.Stdin, os.Stdout)
}

// newLogger builds a production zap logger on stderr so stdout stays
// reserved for protocol replies.
func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
