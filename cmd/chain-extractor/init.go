package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const sampleConfig = `version: 1

global:
  db_path: chain-extractor.db
  retry_delay: 5s
  attempt_timeout: 30s
  queue_capacity: 16

blockchains:
  - name: bsc
    symbol: BSC
    block_interval_seconds: 3
    confirmations: 15
    adapt_concurrently: 4
    options:
      rpc_url: https://bsc-dataseed.bnbchain.org
      receipt_concurrency: 8
  - name: ethereum
    symbol: ETH
    block_interval_seconds: 12
    confirmations: 12
    adapt_concurrently: 2
    enabled: false
    options:
      rpc_url: https://ethereum-rpc.publicnode.com

sinks:
  - id: db
    type: store
  # - id: bus
  #   type: nats
  #   url: nats://127.0.0.1:4222
  #   stream: BLOCKS
  #   subject_prefix: transfers
  # - id: hook
  #   type: webhook
  #   url: https://example.com/blocks
`

var flagInitForce bool

func init() {
	initCmd.Flags().BoolVar(&flagInitForce, "force", false, "Overwrite an existing config file")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(cfgPath); err == nil && !flagInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", cfgPath, err)
		}
		if err := os.WriteFile(cfgPath, []byte(sampleConfig), 0o644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", cfgPath)
		return nil
	},
}
