// Package config holds the scan2pdf configuration: defaults, the YAML
// configuration file, and validation.
//
// Values are layered: NewConfig supplies defaults, LoadFile overlays a YAML
// file (./.scan2pdf.yaml or $XDG_CONFIG_HOME/scan2pdf/config.yaml), and the
// CLI overlays flags last. Example file:
//
//	output_dir: ~/PDF
//	device:
//	  backend: sane
//	  name: "fujitsu"
//	  feeder_settle: 20s
//	ocr:
//	  engine: tesseract
//	  language: eng
//	  workers: 2
//	publish:
//	  bucket: my-scans
//	  prefix: inbox
package config
