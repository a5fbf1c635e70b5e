package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gogpu/stereossim"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "stereossim version %s (%s)\n", stereossim.Version, runtime.Version())
		fmt.Fprintf(cmd.OutOrStdout(), "reducers: %v\n", stereossim.AvailableReducers())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
