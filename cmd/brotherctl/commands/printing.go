package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/adcondev/brother-daemon/internal/brother"
)

func setCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <printer-json>",
		Short: "Select the printer used for printing",
		Long:  "Select the printer used for printing. The descriptor is one entry of `find` output, as JSON.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var descriptor any
			if err := json.Unmarshal([]byte(args[0]), &descriptor); err != nil {
				return fmt.Errorf("printer descriptor is not valid JSON: %w", err)
			}
			return run(cmd, func(ok brother.SuccessFunc, fail brother.ErrorFunc) {
				printer.SetPrinter(descriptor, ok, fail)
			})
		},
	}
	return cmd
}

func printCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "print <image-file|->",
		Short: "Print an image bitmap on the selected printer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			return run(cmd, func(ok brother.SuccessFunc, fail brother.ErrorFunc) {
				printer.PrintViaSDK(data, ok, fail)
			})
		},
	}
	return cmd
}

func usbConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usb-config <payload-file|->",
		Short: "Send a raw print payload to a USB printer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			return run(cmd, func(ok brother.SuccessFunc, fail brother.ErrorFunc) {
				printer.SendUSBConfig(string(data), ok, fail)
			})
		},
	}
	return cmd
}

// readInput reads a file, or stdin for "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(name) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}
