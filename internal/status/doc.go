// Package status carries user-facing progress from a pipeline run to a sink:
// plain text lines for a terminal, JSON lines for other programs. Status is
// separate from logging; it is what the person at the scanner sees.
package status
