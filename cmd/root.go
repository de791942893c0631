package main

import (
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/config"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/fetch"
	"github.com/sakhadib/CRIMENET-Global-Crime-Intelligence-Engine/internal/logger"
)

const defaultConfigPath = "config.yaml"

// commandContext loads the configuration and logger once per invocation.
type commandContext struct {
	configPath string

	once   sync.Once
	cfg    *config.Config
	logger *zap.Logger
	err    error
}

func (c *commandContext) load() (*config.Config, *zap.Logger, error) {
	c.once.Do(func() {
		cfg, err := config.LoadConfig(c.configPath)
		if err != nil {
			c.err = err
			return
		}
		log, err := logger.New(logger.Config{
			Level:      cfg.Log.Level,
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
		if err != nil {
			c.err = err
			return
		}
		c.cfg = cfg
		c.logger = log
	})
	return c.cfg, c.logger, c.err
}

func (c *commandContext) close() {
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

func newFetcher(cfg *config.Config) *fetch.Fetcher {
	return fetch.New(time.Duration(cfg.Logic.TimeoutSec)*time.Second, cfg.Logic.UserAgent)
}

func newRootCommand() *cobra.Command {
	cc := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "crimenet",
		Short:         "Scrape news headlines and keep the ones classified as crime",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(*cobra.Command, []string) {
			cc.close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&cc.configPath, "config", "c", defaultConfigPath, "Configuration file path")

	rootCmd.AddCommand(newRunCommand(cc))
	rootCmd.AddCommand(newSourcesCommand(cc))
	rootCmd.AddCommand(newFullTextCommand(cc))
	rootCmd.AddCommand(newAuxiliaryCommand(cc))
	rootCmd.AddCommand(newStatsCommand(cc))

	return rootCmd
}
