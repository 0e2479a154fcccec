package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the version of jdex, set by main from the build.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of jdex",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "jdex version %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
