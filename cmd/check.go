package cmd

import (
	"fmt"

	"github.com/encodeous/ddsroute/state"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validates a node configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := state.ReadLocalConfig(configPath)
		if err != nil {
			return err
		}
		if err := state.NodeConfigValidator(cfg); err != nil {
			return fmt.Errorf("%s is not valid: %w", configPath, err)
		}
		fmt.Printf("%s is valid: node %s, host %s, %d ports, %d static routes\n",
			configPath, cfg.Id, cfg.Host, len(cfg.Ports), len(cfg.Static))
		for idx, p := range cfg.Ports {
			fmt.Printf(" - port %d: net %s kind %s subnet %s, %d peers\n", idx, p.Network, p.Kind, p.Subnet, len(p.Peers))
		}
		return nil
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
