package main

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = ""
)

// buildVersion falls back to the module version and VCS revision recorded by the toolchain.
func buildVersion() (string, string) {
	v, c := version, commit
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return v, c
	}
	if v == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		v = info.Main.Version
	}
	if c == "" {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				c = s.Value[:7]
			}
		}
	}
	return v, c
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build and the supported blockchain symbols",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, c := buildVersion()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "chain-extractor %s", v)
		if c != "" {
			fmt.Fprintf(out, " (%s)", c)
		}
		fmt.Fprintf(out, " %s\n", runtime.Version())
		fmt.Fprintf(out, "adapters: %s\n", strings.Join(newRegistry().Symbols(), ", "))
		return nil
	},
}
