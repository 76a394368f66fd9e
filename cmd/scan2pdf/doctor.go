package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ironsheep/scan2pdf/internal/command"
	"github.com/ironsheep/scan2pdf/internal/config"
	"github.com/ironsheep/scan2pdf/internal/ocr"
	"github.com/spf13/cobra"
)

// check is one line of the doctor report.
type check struct {
	name   string
	ok     bool
	detail string
	// optional checks warn instead of failing the command.
	optional bool
}

// NewDoctorCmd creates the doctor command.
func NewDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that scanning and OCR can run on this machine",
		Args:  cobra.NoArgs,
		RunE:  runDoctorCmd,
	}
}

func runDoctorCmd(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, path, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(getVerboseFlag(cmd), cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // stderr sync errors are not actionable

	checks := []check{configCheck(cfg, path)}
	checks = append(checks, backendCheck(cfg))
	if cfg.Device.Backend == config.DeviceBackendSANE {
		devices, err := newBackend(cfg, logger).Devices(context.Background())
		switch {
		case err != nil:
			checks = append(checks, check{name: "scanners", detail: err.Error(), optional: true})
		case len(devices) == 0:
			checks = append(checks, check{name: "scanners", detail: "none found", optional: true})
		default:
			checks = append(checks, check{name: "scanners", ok: true, detail: fmt.Sprintf("%d found", len(devices))})
		}
	}
	checks = append(checks, ocrCheck(cfg.OCR), outputCheck(cfg.OutputDir))
	if cfg.History.Enabled {
		checks = append(checks, historyCheck(cfg))
	}

	if failed := report(cmd.OutOrStdout(), checks); failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func configCheck(cfg *config.Config, path string) check {
	c := check{name: "config", ok: true, detail: "defaults (no file)"}
	if path != "" {
		c.detail = path
	}
	if err := cfg.Validate(); err != nil {
		c.ok = false
		c.detail = err.Error()
	}
	return c
}

func backendCheck(cfg *config.Config) check {
	if cfg.Device.Backend == config.DeviceBackendTest {
		return check{name: "scanimage", ok: true, detail: "test backend, not needed"}
	}
	found, err := command.Lookup(cfg.Device.ScanimagePath)
	if err != nil {
		return check{name: "scanimage", detail: err.Error()}
	}
	return check{name: "scanimage", ok: true, detail: found}
}

// ocrCheck is optional: scans run without OCR when no engine is available.
func ocrCheck(cfg config.OCRConfig) check {
	c := check{name: "ocr (" + cfg.Engine + ")", optional: true}
	if err := ocr.Available(cfg); err != nil {
		c.detail = err.Error() + "; scans will continue without OCR"
		return c
	}
	c.ok = true
	c.detail = "available, language " + cfg.Language
	return c
}

func outputCheck(dir string) check {
	c := check{name: "output dir", detail: dir}
	if err := os.MkdirAll(dir, 0755); err != nil {
		c.detail = err.Error()
		return c
	}
	tmp, err := os.CreateTemp(dir, ".scan2pdf-doctor-*")
	if err != nil {
		c.detail = "not writable: " + err.Error()
		return c
	}
	tmp.Close()
	os.Remove(tmp.Name())
	c.ok = true
	return c
}

func historyCheck(cfg *config.Config) check {
	c := check{name: "history", detail: cfg.History.Path, optional: true}
	store, err := openJournal(cfg)
	if err != nil {
		c.detail = err.Error()
		return c
	}
	defer store.Close()

	kept, err := store.Retained()
	if err != nil {
		c.detail = err.Error()
		return c
	}
	c.ok = true
	if len(kept) > 0 {
		c.detail = fmt.Sprintf("%s (%d failed runs kept pages, see 'scan2pdf clean')", filepath.Base(cfg.History.Path), len(kept))
	}
	return c
}

// report prints checks and returns how many required checks failed.
func report(w io.Writer, checks []check) int {
	failed := 0
	for _, c := range checks {
		mark := "ok"
		switch {
		case c.ok:
		case c.optional:
			mark = "warn"
		default:
			mark = "FAIL"
			failed++
		}
		fmt.Fprintf(w, "[%-4s] %-18s %s\n", mark, c.name, c.detail)
	}
	return failed
}
