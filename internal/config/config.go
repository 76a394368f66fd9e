package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

const (
	// AppName is used for XDG directory paths and the config file name.
	AppName = "scan2pdf"

	// DefaultOutputSubdir is created under the user's home directory.
	DefaultOutputSubdir = "PDF"

	DeviceBackendSANE = "sane"
	DeviceBackendTest = "test"

	OCREngineTesseract = "tesseract"
	OCREngineGosseract = "gosseract"

	DefaultScanimagePath = "scanimage"
	DefaultTesseractPath = "tesseract"
	DefaultLanguage      = "eng"

	// DefaultWorkers keeps per-page stages sequential unless configured.
	DefaultWorkers = 1

	// DefaultFeederSettle is zero: the settle wait is only needed for
	// backends that report a read timeout between feeder pages as end of
	// session.
	DefaultFeederSettle = time.Duration(0)
)

// Config holds every tunable of the scan2pdf CLI. It is populated from
// defaults, then the YAML file, then command-line flags.
type Config struct {
	// OutputDir receives merged documents. Created on demand.
	OutputDir string `yaml:"output_dir"`

	// WorkRoot is the parent of per-run working directories. Empty means
	// the system temp directory.
	WorkRoot string `yaml:"work_root"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Device    DeviceConfig    `yaml:"device"`
	OCR       OCRConfig       `yaml:"ocr"`
	Normalize NormalizeConfig `yaml:"normalize"`
	History   HistoryConfig   `yaml:"history"`
	Publish   PublishConfig   `yaml:"publish"`
}

// DeviceConfig selects and tunes the scanning backend.
type DeviceConfig struct {
	Backend       string        `yaml:"backend"`
	Name          string        `yaml:"name"`
	FeederSettle  time.Duration `yaml:"feeder_settle"`
	ScanimagePath string        `yaml:"scanimage_path"`
	// TestPages is the number of synthetic pages the test backend feeds.
	TestPages int `yaml:"test_pages"`
}

// OCRConfig selects and tunes the recognition backend.
type OCRConfig struct {
	Engine         string `yaml:"engine"`
	Language       string `yaml:"language"`
	TesseractPath  string `yaml:"tesseract_path"`
	TessdataPrefix string `yaml:"tessdata_prefix"`
	Workers        int    `yaml:"workers"`
}

type NormalizeConfig struct {
	Workers int `yaml:"workers"`
}

// HistoryConfig controls the run journal.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// PublishConfig enables uploading verified output to a Cloud Storage bucket.
// Publishing is off while Bucket is empty.
type PublishConfig struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		OutputDir: DefaultOutputDir(),
		LogLevel:  "info",
		Device: DeviceConfig{
			Backend:       DeviceBackendSANE,
			FeederSettle:  DefaultFeederSettle,
			ScanimagePath: DefaultScanimagePath,
			TestPages:     3,
		},
		OCR: OCRConfig{
			Engine:        OCREngineTesseract,
			Language:      DefaultLanguage,
			TesseractPath: DefaultTesseractPath,
			Workers:       DefaultWorkers,
		},
		Normalize: NormalizeConfig{Workers: DefaultWorkers},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(XDGDataDir(), "history.db"),
		},
	}
}

// DefaultOutputDir returns ~/PDF, falling back to the XDG documents
// directory when the home directory cannot be determined.
func DefaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(xdg.UserDirs.Documents, DefaultOutputSubdir)
	}
	return filepath.Join(home, DefaultOutputSubdir)
}

// XDGDataDir returns the data directory for scan2pdf ($XDG_DATA_HOME/scan2pdf).
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the config directory for scan2pdf ($XDG_CONFIG_HOME/scan2pdf).
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return ErrInvalidOutputDir
	}
	switch c.Device.Backend {
	case DeviceBackendSANE, DeviceBackendTest:
	default:
		return ErrUnknownDeviceBackend
	}
	switch c.OCR.Engine {
	case OCREngineTesseract, OCREngineGosseract:
	default:
		return ErrUnknownOCREngine
	}
	if c.OCR.Workers < 1 || c.Normalize.Workers < 1 {
		return ErrInvalidWorkers
	}
	if c.Device.FeederSettle < 0 {
		return ErrInvalidSettle
	}
	if c.OCR.Language == "" {
		return ErrInvalidLanguage
	}
	return nil
}
