package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

const DefaultConfigPath = "node.yaml"

var configPath = DefaultConfigPath

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ddsroute",
	Short: "Distance vector router for the internal datagram network",
	Long: `ddsroute maintains the routing table of the internal datagram network.
It exchanges hop count advertisements with neighbouring routers over udp, ages out stale routes and answers next hop queries.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "init",
		Title: "Configure ddsroute",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "dd",
		Title: "Router Commands",
	})
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", configPath, "node config file")
}
