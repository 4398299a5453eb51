package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"tweetwatch/pkg/ui"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(ui.Out, "tweetwatch %s\n", version)
		fmt.Fprintf(ui.Out, "  commit:  %s\n", gitCommit)
		fmt.Fprintf(ui.Out, "  built:   %s\n", buildDate)
		fmt.Fprintf(ui.Out, "  go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
