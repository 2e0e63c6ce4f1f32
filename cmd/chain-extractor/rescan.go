package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	flagRescanFrom uint64
	flagRescanTo   uint64
)

func init() {
	rescanCmd.Flags().Uint64Var(&flagRescanFrom, "from", 0, "First block to re-extract")
	rescanCmd.Flags().Uint64Var(&flagRescanTo, "to", 0, "Last block to re-extract (0 follows the tip)")
	_ = rescanCmd.MarkFlagRequired("from")
}

var rescanCmd = &cobra.Command{
	Use:   "rescan <blockchain>",
	Short: "Request a confirmed-mode rescan picked up by the next run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.StartRescan(ctx, args[0], flagRescanFrom, flagRescanTo); err != nil {
			return err
		}
		b, err := store.GetBlockchain(ctx, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "rescan of %s from %d to %s scheduled\n", b.Name, b.RescanProcessedBlock+1, target(b.RescanTargetBlock))
		if !b.Enabled {
			fmt.Fprintf(out, "warning: %s is disabled and will not be rescanned until enabled\n", b.Name)
		}
		return nil
	},
}
