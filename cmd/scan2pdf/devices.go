package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/ironsheep/scan2pdf/internal/device"
	"github.com/spf13/cobra"
)

// NewDevicesCmd creates the devices command.
func NewDevicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List available scanners",
		Long: `List the scanners the configured backend can see. The NAME column is what
--device matches against (any substring of the name or label works).

Webcams and other video devices reported by SANE are hidden unless --all
is given.`,
		Args: cobra.NoArgs,
		RunE: runDevicesCmd,
	}
	cmd.Flags().Bool("all", false, "Include non-scanner devices")
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	cmd.Flags().String("backend", "", "Device backend: sane or test")
	return cmd
}

func runDevicesCmd(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // stderr sync errors are not actionable

	if cmd.Flags().Changed("backend") {
		cfg.Device.Backend, _ = cmd.Flags().GetString("backend")
	}

	devices, err := newBackend(cfg, logger).Devices(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	all, _ := cmd.Flags().GetBool("all")
	shown := make([]device.Info, 0, len(devices))
	for _, d := range devices {
		if all || d.IsScanner() {
			shown = append(shown, d)
		}
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(shown)
	}

	if len(shown) == 0 {
		fmt.Fprintln(out, "No scanners found.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLABEL\tTYPE")
	for _, d := range shown {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, d.Label(), d.Type)
	}
	return tw.Flush()
}
