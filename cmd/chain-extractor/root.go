package main

import (
	"context"
	"fmt"
	"os"

	"github.com/devblac/chain-extractor/internal/config"
	"github.com/devblac/chain-extractor/internal/source"
	"github.com/devblac/chain-extractor/internal/source/evm"
	"github.com/devblac/chain-extractor/internal/storage"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	rootCmd = &cobra.Command{
		Use:   "chain-extractor",
		Short: "Ordered, resumable transfer extraction for EVM chains",
	}
)

func init() {
	cobra.EnableCommandSorting = false

	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "Path to config file")

	rootCmd.AddCommand(
		versionCmd,
		initCmd,
		validateCmd,
		runCmd,
		stateCmd,
		rescanCmd,
		exportCmd,
	)
}

// Execute runs the root command tree.
func Execute() error {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

func newRegistry() *source.Registry {
	reg := source.NewRegistry()
	evm.Register(reg)
	return reg
}

// openStore loads the config, opens its database and seeds the configured blockchains.
func openStore(ctx context.Context) (*config.Config, *storage.Store, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	store, err := storage.Open(cfg.Global.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	for _, b := range cfg.Blockchains {
		if err := store.SeedBlockchain(ctx, b.Record()); err != nil {
			store.Close()
			return nil, nil, err
		}
	}
	return cfg, store, nil
}
