package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/scan2pdf/internal/config"
	"github.com/ironsheep/scan2pdf/internal/ocr"
	"github.com/ironsheep/scan2pdf/internal/pdf"
	"github.com/ironsheep/scan2pdf/internal/pipeline"
	"github.com/ironsheep/scan2pdf/internal/publish"
	"github.com/ironsheep/scan2pdf/internal/scan"
	"github.com/ironsheep/scan2pdf/internal/status"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan pages into a PDF",
		Long: `Scan acquires pages from the selected scanner and writes one PDF to the
output directory (default ~/PDF).

Pages are cropped to US Letter unless --native is given, converted to
grayscale unless --color is given, and run through OCR unless --no-ocr is
given. If the OCR engine is not installed, the scan continues without OCR.

Examples:
  # One page from the flatbed, Letter, gray, searchable
  scan2pdf scan

  # Everything in the document feeder
  scan2pdf scan --source feeder

  # A color photo at the scanner's full area, no OCR
  scan2pdf scan --color --native --no-ocr

  # Machine-readable progress
  scan2pdf scan --source feeder --json`,
		Args: cobra.NoArgs,
		RunE: runScanCmd,
	}

	// Request flags
	cmd.Flags().StringP("source", "s", "flatbed", "Paper source: flatbed or feeder")
	cmd.Flags().Bool("color", false, "Scan in color instead of grayscale")
	cmd.Flags().Bool("native", false, "Keep the scanner's full area instead of cropping to Letter")
	cmd.Flags().Bool("no-ocr", false, "Skip text recognition")
	cmd.Flags().StringP("lang", "l", "", "OCR language, e.g. eng or deu+eng (default from config)")
	cmd.Flags().StringP("device", "d", "", "Scanner to use (substring of its name; default: first found)")

	// Config overrides
	cmd.Flags().StringP("output-dir", "o", "", "Directory for finished PDFs")
	cmd.Flags().String("work-root", "", "Parent directory for per-run working directories")
	cmd.Flags().String("backend", "", "Device backend: sane or test")
	cmd.Flags().String("engine", "", "OCR engine: tesseract or gosseract")
	cmd.Flags().Duration("settle", 0, "Wait this long for more paper when the feeder reports empty")
	cmd.Flags().Int("workers", 0, "Pages normalized and recognized in parallel")
	cmd.Flags().String("bucket", "", "Also publish the PDF to this Cloud Storage bucket")

	// Output
	cmd.Flags().BoolP("json", "j", false, "Print progress as JSON lines")

	return cmd
}

func runScanCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	req, err := buildRequest(cmd, cfg)
	if err != nil {
		return err
	}

	logger, err := newLogger(getVerboseFlag(cmd), cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // stderr sync errors are not actionable

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	var sink status.Sink = status.NewTextSink(cmd.OutOrStdout())
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		sink = status.NewJSONSink(cmd.OutOrStdout())
	}

	_, err = runScan(ctx, cfg, req, sink, logger)
	return err
}

// buildConfig loads the configuration file and applies command-line
// overrides. Only flags the user set replace file values.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()

	stringFlags := map[string]*string{
		"output-dir": &cfg.OutputDir,
		"work-root":  &cfg.WorkRoot,
		"backend":    &cfg.Device.Backend,
		"engine":     &cfg.OCR.Engine,
		"lang":       &cfg.OCR.Language,
		"device":     &cfg.Device.Name,
		"bucket":     &cfg.Publish.Bucket,
	}
	for name, dst := range stringFlags {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetString(name); err != nil {
			return nil, err
		}
	}

	if flags.Changed("settle") {
		if cfg.Device.FeederSettle, err = flags.GetDuration("settle"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("workers") {
		workers, err := flags.GetInt("workers")
		if err != nil {
			return nil, err
		}
		cfg.OCR.Workers = workers
		cfg.Normalize.Workers = workers
	}
	return cfg, nil
}

// buildRequest turns the request flags into a scan request.
func buildRequest(cmd *cobra.Command, cfg *config.Config) (scan.Request, error) {
	flags := cmd.Flags()

	sourceName, err := flags.GetString("source")
	if err != nil {
		return scan.Request{}, err
	}
	source, err := scan.ParseSource(sourceName)
	if err != nil {
		return scan.Request{}, err
	}
	colorFlag, _ := flags.GetBool("color")
	native, _ := flags.GetBool("native")
	noOCR, _ := flags.GetBool("no-ocr")

	opts := []scan.Option{
		scan.WithSource(source),
		scan.WithOCR(!noOCR),
		scan.WithLanguage(cfg.OCR.Language),
		scan.WithDevice(cfg.Device.Name),
	}
	if colorFlag {
		opts = append(opts, scan.WithColor(scan.Color))
	}
	if native {
		opts = append(opts, scan.WithPageSize(scan.Native))
	}
	req := scan.NewRequest(opts...)
	return req, req.Validate()
}

// runScan wires the pipeline from cfg and executes one run.
func runScan(ctx context.Context, cfg *config.Config, req scan.Request, sink status.Sink, logger *zap.Logger) (*scan.Result, error) {
	notice := status.Reporter{Sink: sink}
	if req.OCR {
		if err := ocr.Available(cfg.OCR); err != nil {
			logger.Warn("OCR engine unavailable, continuing without OCR", zap.String("engine", cfg.OCR.Engine), zap.Error(err))
			notice.Warn(scan.StageIdle, "OCR unavailable (%v), continuing without OCR", err)
			req.OCR = false
		}
	}

	c := &pipeline.Controller{
		Acquirer:   pipeline.NewAcquirer(newBackend(cfg, logger), cfg.Device.FeederSettle, logger),
		Normalizer: &pipeline.Normalizer{Workers: cfg.Normalize.Workers, Logger: logger},
		Merger:     pdf.NewMerger(logger),
		OutputDir:  cfg.OutputDir,
		WorkRoot:   cfg.WorkRoot,
		Sink:       sink,
		Logger:     logger,
	}

	if req.OCR {
		engine, err := ocr.New(cfg.OCR, nil, logger)
		if err != nil {
			return nil, err
		}
		c.Recognizer = &pipeline.Recognizer{Engine: engine, Workers: cfg.OCR.Workers, Logger: logger}
	}

	journal, err := openJournal(cfg)
	if err != nil {
		logger.Warn("run history unavailable", zap.Error(err))
	} else if journal != nil {
		defer journal.Close()
		c.Journal = journal
	}

	if cfg.Publish.Bucket != "" {
		uploader, closeClient, err := publish.NewGCS(ctx, cfg.Publish, logger)
		if err != nil {
			return nil, err
		}
		defer closeClient() //nolint:errcheck // client close at exit
		c.Publisher = uploader
	}

	return c.Run(ctx, req)
}
