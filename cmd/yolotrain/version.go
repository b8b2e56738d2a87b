package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/yolotrain"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of yolotrain",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "yolotrain version %s\n", strings.TrimSpace(yolotrain.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
