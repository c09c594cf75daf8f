package cmd

import (
	"crypto/rand"
	"fmt"
	"net/netip"
	"os"

	"github.com/encodeous/ddsroute/state"
	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a node configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if err := state.NameValidator(name); err != nil {
			return fmt.Errorf("invalid name %q: %w", name, err)
		}
		var network state.NetworkId
		if err := network.UnmarshalText([]byte(cmd.Flag("network").Value.String())); err != nil {
			return err
		}
		subnet, err := netip.ParsePrefix(cmd.Flag("subnet").Value.String())
		if err != nil {
			return err
		}
		port, _ := cmd.Flags().GetUint16("port")

		cfg := state.LocalCfg{
			Id:   name,
			Bind: fmt.Sprintf("0.0.0.0:%d", port),
			Ports: []state.Port{
				{
					Network: network,
					Kind:    state.PortEthernet,
					Subnet:  subnet,
				},
			},
		}
		_, _ = rand.Read(cfg.Host[:])
		// keep the host unicast and locally administered
		cfg.Host[0] = cfg.Host[0]&0xfc | 0x02

		if err := state.NodeConfigValidator(&cfg); err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("output")
		if _, err := os.Stat(out); err == nil {
			if force, _ := cmd.Flags().GetBool("force"); !force {
				return fmt.Errorf("%s already exists, use --force to overwrite it", out)
			}
		}
		return state.WriteLocalConfig(out, &cfg)
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().StringP("output", "o", DefaultConfigPath, "node config output file path")
	newCmd.Flags().Uint16P("port", "p", state.DefaultPort, "UDP port to listen on")
	newCmd.Flags().StringP("network", "n", "1", "network number of the first port, in hex")
	newCmd.Flags().String("subnet", "10.0.0.0/24", "underlay subnet the first port's neighbours are in")
	newCmd.Flags().BoolP("force", "f", false, "overwrite an existing config")
}
