package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adcondev/brother-daemon/internal/brother"
)

func findCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "find [network|bluetooth|all]",
		Short:     "Discover printers (all transports by default)",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"network", "bluetooth", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			scope := "all"
			if len(args) == 1 {
				scope = args[0]
			}

			var call brother.Call
			switch scope {
			case "network":
				call = printer.FindNetworkPrinters
			case "bluetooth":
				call = printer.FindBluetoothPrinters
			case "all":
				call = printer.FindPrinters
			default:
				return fmt.Errorf("unknown scope %q (use network, bluetooth or all)", scope)
			}
			return run(cmd, call)
		},
	}
	return cmd
}

func pairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pair",
		Short: "Pair nearby Bluetooth printers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, printer.PairBluetoothPrinters)
		},
	}
	return cmd
}
