package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "yolotrain",
	Short: "Train YOLO detectors on Roboflow datasets",
	Long: `yolotrain downloads a Roboflow dataset, fine-tunes a YOLO model through a
trainer bridge process, evaluates it and reports the run to an experiment
tracker. Running it without a subcommand is the same as "yolotrain train".`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config.yaml (default: configs/config.yaml next to the executable)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
}
