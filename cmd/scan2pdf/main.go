// Package main provides the entry point for the scan2pdf CLI.
//
// scan2pdf drives a document scanner, cleans up every page, optionally runs
// OCR, and writes a single PDF to ~/PDF.
//
// Usage:
//
//	scan2pdf scan --source feeder
//	scan2pdf scan --source flatbed --color --native --no-ocr
//	scan2pdf devices
//
// See --help for all available options.
package main

func main() {
	Execute()
}
