package cmd

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/encodeous/ddsroute/protocol"
	"github.com/gopacket/gopacket"
	"github.com/spf13/cobra"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [hex datagram]...",
	Short: "Decodes advertisement datagrams given as hex, one per argument or line of stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			sc := bufio.NewScanner(os.Stdin)
			for sc.Scan() {
				if line := strings.TrimSpace(sc.Text()); line != "" {
					args = append(args, line)
				}
			}
			if err := sc.Err(); err != nil {
				return err
			}
		}
		for _, arg := range args {
			data, err := hex.DecodeString(strings.ReplaceAll(arg, " ", ""))
			if err != nil {
				return fmt.Errorf("invalid hex %q: %w", arg, err)
			}
			packet := gopacket.NewPacket(data, protocol.LayerTypeFrame, gopacket.Default)
			fmt.Print(packet.String())
			if errLayer := packet.ErrorLayer(); errLayer != nil {
				fmt.Printf("decode error: %v\n", errLayer.Error())
			}
		}
		return nil
	},
	GroupID: "dd",
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}
