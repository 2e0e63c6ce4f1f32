package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/devblac/chain-extractor/internal/storage"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	flagExportFormat    string
	flagExportTransfers string
	flagExportLimit     int
)

func init() {
	exportCmd.Flags().StringVar(&flagExportFormat, "format", "json", "Output format: json or yaml")
	exportCmd.Flags().StringVar(&flagExportTransfers, "transfers", "", "Also export stored transfers of this blockchain")
	exportCmd.Flags().IntVar(&flagExportLimit, "limit", 1000, "Maximum number of transfers (0 for all)")
}

type exportDoc struct {
	Blockchains []storage.Blockchain `json:"blockchains" yaml:"blockchains"`
	Transfers   []storage.Transfer   `json:"transfers,omitempty" yaml:"transfers,omitempty"`
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export blockchain records and stored transfers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		var doc exportDoc
		if doc.Blockchains, err = store.ListBlockchains(ctx, false); err != nil {
			return err
		}
		if flagExportTransfers != "" {
			if doc.Transfers, err = store.ListTransfers(ctx, flagExportTransfers, flagExportLimit); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		switch strings.ToLower(flagExportFormat) {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		case "yaml", "yml":
			enc := yaml.NewEncoder(out)
			defer enc.Close()
			return enc.Encode(doc)
		default:
			return fmt.Errorf("unsupported format %q", flagExportFormat)
		}
	},
}
