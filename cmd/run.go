package cmd

import (
	"github.com/encodeous/ddsroute/core"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the router",
	Long:  `This will run the router on the current host until it receives SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		logPath, _ := cmd.Flags().GetString("log")
		debugAddr, _ := cmd.Flags().GetString("debug")
		return core.Bootstrap(configPath, logPath, debugAddr, verbose)
	},
	GroupID: "dd",
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	runCmd.Flags().StringP("log", "l", "", "Also write logs to this file")
	runCmd.Flags().String("debug", "", "Serve expvar and metrics on this address, e.g. 127.0.0.1:6060")
}
