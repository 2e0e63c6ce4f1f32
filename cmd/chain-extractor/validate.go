package main

import (
	"context"
	"fmt"
	"time"

	"github.com/devblac/chain-extractor/internal/config"
	"github.com/devblac/chain-extractor/internal/source"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"
)

const defaultRPCTimeout = 8 * time.Second

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config and ping RPC endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}
		fmt.Fprintf(out, "config OK (version %d)\n", cfg.Version)

		reg := newRegistry()
		failures := 0

		for _, b := range cfg.Blockchains {
			if _, err := reg.Lookup(b.Symbol); err != nil {
				failures++
				fmt.Fprintf(out, "- blockchain %s: ERROR %v (known: %v)\n", b.Name, err, reg.Symbols())
				continue
			}
			chainID, err := pingChainID(cmd.Context(), b.Options)
			if err != nil {
				failures++
				fmt.Fprintf(out, "- blockchain %s (%s): ERROR %v\n", b.Name, b.Symbol, err)
				continue
			}
			fmt.Fprintf(out, "- blockchain %s (%s): chainId %s OK\n", b.Name, b.Symbol, chainID)
		}

		if failures > 0 {
			return fmt.Errorf("validate: %d blockchain(s) failed", failures)
		}

		fmt.Fprintln(out, "validate: success")
		return nil
	},
}

func pingChainID(ctx context.Context, opts source.Options) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultRPCTimeout)
	defer cancel()

	cli, err := ethclient.DialContext(ctx, opts.RPCURL)
	if err != nil {
		return "", fmt.Errorf("dial: %w", err)
	}
	defer cli.Close()

	id, err := cli.ChainID(ctx)
	if err != nil {
		return "", fmt.Errorf("call eth_chainId: %w", err)
	}
	return id.String(), nil
}
