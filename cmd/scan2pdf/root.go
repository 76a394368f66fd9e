package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for scan2pdf.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan2pdf",
		Short: "Scan paper documents into searchable PDF files",
		Long: `scan2pdf scans one or more pages from a flatbed or document feeder,
crops them to Letter (or keeps the full scan area), optionally runs OCR,
and merges everything into one PDF named scan_YYYY-MM-DD-HH-MM-SS.pdf.

Scanners are driven through SANE (scanimage). OCR uses Tesseract.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: ./.scan2pdf.yaml or $XDG_CONFIG_HOME/scan2pdf/config.yaml)")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewDevicesCmd())
	cmd.AddCommand(NewDoctorCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewCleanCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
