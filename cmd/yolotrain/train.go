package main

import (
	"github.com/aretw0/yolotrain/internal/cli"
	"github.com/spf13/cobra"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run the training pipeline",
	Long: `Loads the configuration, selects a device, downloads the dataset, trains and
evaluates the model. The best checkpoint and a parameter chart are logged to
the configured tracker; validation metrics are printed to stdout.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		debug, _ := cmd.Flags().GetBool("debug")
		logFormat, _ := cmd.Flags().GetString("log-format")
		textfile, _ := cmd.Flags().GetString("metrics-textfile")
		quiet, _ := cmd.Flags().GetBool("quiet")
		envFiles, _ := cmd.Flags().GetStringSlice("env-file")

		return cli.Execute(cli.RunOptions{
			ConfigPath:      configPath,
			Debug:           debug,
			LogFormat:       logFormat,
			MetricsTextfile: textfile,
			Quiet:           quiet,
			EnvFiles:        envFiles,
		})
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)

	for _, cmd := range []*cobra.Command{trainCmd, rootCmd} {
		cmd.Flags().String("metrics-textfile", "", "Write stage metrics in Prometheus textfile format to this path")
		cmd.Flags().BoolP("quiet", "q", false, "Do not print stage status lines")
		cmd.Flags().StringSlice("env-file", []string{".env"}, "Env files read before resolving the Roboflow API key")
	}

	// 'train' is the default if no command is provided
	rootCmd.RunE = trainCmd.RunE
}
