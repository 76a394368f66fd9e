// Package device abstracts the scanning hardware the pipeline acquires
// pages from.
//
// A Backend lists and opens devices; a Device takes best-effort option
// settings and starts sessions; a Session yields page images in feed order
// and signals exhaustion with io.EOF.
//
// Two backends are provided. SANE drives the scanimage program: devices are
// listed with a formatted -f query, options are discovered from -A output,
// and pages are acquired in --batch mode into a private staging directory.
// TestPattern synthesizes pages of distinct hues and can simulate an empty
// feeder, a feeder that stalls between sheets, and rejected options.
package device
