package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/devblac/chain-extractor/internal/source"
	"github.com/devblac/chain-extractor/internal/storage"
	"github.com/spf13/cobra"
)

var flagLag bool

func init() {
	stateCmd.Flags().BoolVar(&flagLag, "lag", false, "Query each chain node and show blocks behind the tip")
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show cursors and processing lag",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		chains, err := store.ListBlockchains(ctx, false)
		if err != nil {
			return err
		}

		reg := newRegistry()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		header := "BLOCKCHAIN\tSYMBOL\tENABLED\tCONFIRMATIONS\tDIRTY\tCONFIRMED\tRESCAN"
		if flagLag {
			header += "\tTIP\tLAG"
		}
		fmt.Fprintln(w, header)

		for _, b := range chains {
			rescan := "-"
			if b.RescanActive {
				rescan = fmt.Sprintf("%d/%s", b.RescanProcessedBlock, target(b.RescanTargetBlock))
			}
			line := fmt.Sprintf("%s\t%s\t%t\t%d\t%d\t%d\t%s", b.Name, b.Symbol, b.Enabled, b.Confirmations,
				b.DirtyProcessedBlock, b.ConfirmedProcessedBlock, rescan)
			if flagLag {
				line += "\t" + lagColumns(ctx, reg, b)
			}
			fmt.Fprintln(w, line)
		}
		return w.Flush()
	},
}

func target(n uint64) string {
	if n == 0 {
		return "tip"
	}
	return fmt.Sprintf("%d", n)
}

func lagColumns(ctx context.Context, reg *source.Registry, b storage.Blockchain) string {
	adapter, err := reg.Build(b.Symbol, b.Options)
	if err != nil {
		return "error\t-"
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tip, err := adapter.LatestBlockHeight(ctx)
	if err != nil {
		return "unreachable\t-"
	}
	var lag uint64
	if tip > b.ConfirmedProcessedBlock {
		lag = tip - b.ConfirmedProcessedBlock
	}
	return fmt.Sprintf("%d\t%d", tip, lag)
}
