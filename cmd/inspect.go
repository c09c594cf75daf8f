package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/encodeous/ddsroute/core"
	"github.com/encodeous/ddsroute/state"
	"github.com/spf13/cobra"
)

// ipcPath resolves the socket of the router configured in configPath
func ipcPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("socket"); p != "" {
		return p, nil
	}
	cfg, err := state.ReadLocalConfig(configPath)
	if err != nil {
		return "", err
	}
	return cfg.GetIpcPath(), nil
}

var inspectCmd = &cobra.Command{
	Use:     "inspect",
	Aliases: []string{"i"},
	Short:   "Inspects the current state of the router",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := ipcPath(cmd)
		if err != nil {
			return err
		}
		if trace, _ := cmd.Flags().GetBool("trace"); trace {
			return core.IPCTrace(path, os.Stdout)
		}
		result, err := core.IPCGet(path, "inspect")
		if err != nil {
			return err
		}
		fmt.Print(result)
		return nil
	},
	GroupID: "dd",
}

func portCommand(use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <port>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := ipcPath(cmd)
			if err != nil {
				return err
			}
			result, err := core.IPCGet(path, use+" "+args[0])
			if err != nil {
				return err
			}
			fmt.Print(result)
			return nil
		},
		GroupID: "dd",
	}
}

var routeCmd = &cobra.Command{
	Use:   "route <network>[.<host>] [class]",
	Short: "Resolves the next hop the router would use for a destination",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := ipcPath(cmd)
		if err != nil {
			return err
		}
		result, err := core.IPCGet(path, "route "+strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Print(result)
		return nil
	},
	GroupID: "dd",
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolP("trace", "t", false, "Stream router events until interrupted")

	downCmd := portCommand("down", "Bring a port down, withdrawing every route through it")
	upCmd := portCommand("up", "Bring a port back up after down")
	rootCmd.AddCommand(downCmd, upCmd, routeCmd)

	for _, c := range []*cobra.Command{inspectCmd, downCmd, upCmd, routeCmd} {
		c.Flags().StringP("socket", "s", "", "ipc socket of the router, defaults to the one in the node config")
	}
}
