package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/adcondev/brother-daemon/internal/bridge"
	"github.com/adcondev/brother-daemon/internal/brother"
	"github.com/adcondev/brother-daemon/internal/config"
)

var (
	hostURL string
	origin  string
	timeout time.Duration

	link    *bridge.Client
	printer *brother.Client
)

// Execute runs the brotherctl command tree.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "brotherctl",
		Short:        "Drive a Brother printer through the native SDK host",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if hostURL == "" {
				hostURL = config.GetEnvironment(config.BuildEnvironment).NativeHostURL
			}
			link = bridge.NewClient(bridge.Config{URL: hostURL, Origin: origin})
			printer = brother.NewClient(link)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&hostURL, "host", "", "native host WebSocket URL (default from build environment)")
	root.PersistentFlags().StringVar(&origin, "origin", "", "Origin header sent to the native host")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for the SDK to answer")

	root.AddCommand(findCmd(), pairCmd(), setCmd(), printCmd(), usbConfigCmd())
	return root
}

// run awaits call and prints its result (or normalized error) as JSON.
func run(cmd *cobra.Command, call brother.Call) error {
	defer func() { _ = link.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	result, err := brother.Await(ctx, call)
	if err != nil {
		var be *brother.Error
		if errors.As(err, &be) {
			_ = writeJSON(cmd, map[string]any{
				"kind":      be.Kind.String(),
				"message":   be.Message,
				"code":      be.Code,
				"namespace": be.Namespace,
			}, true)
		}
		return err
	}
	if result == nil {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "OK")
		return nil
	}
	return writeJSON(cmd, result, false)
}

func writeJSON(cmd *cobra.Command, v any, toErr bool) error {
	out := cmd.OutOrStdout()
	if toErr {
		out = cmd.ErrOrStderr()
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
