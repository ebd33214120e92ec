package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luma/argus/cmd/gen"
	"github.com/luma/argus/internal/meta"
)

var RootCmd = &cobra.Command{
	Use:   "argus",
	Short: "Argus monitors a Texecom alarm panel over its Connect protocol",
	Long: `Argus maintains the single TCP session a Texecom panel allows,
decodes the event stream, and keeps a queryable snapshot of the
last observed panel state.`,
}

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build and version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := meta.GetInfo()

		fmt.Printf("argus %s (%s@%s)\n", info.Version, info.Branch, info.Build)
		fmt.Printf("built %s with %s %s [%s]\n",
			info.BuildTime, info.GoVersion, info.GoTag, info.Platform)
	},
}

func init() {
	RootCmd.AddCommand(StartCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.AddCommand(gen.RootCmd)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
