// Package pipeline turns a scan request into one verified PDF.
//
// A Controller owns a run from start to finish. It creates a private working
// directory, then runs the stages in order:
//
//	Acquiring    the Acquirer drives a device.Backend and writes scan_%06d.tif
//	Normalizing  pages are cropped to Letter and/or converted to gray in place
//	Recognizing  with OCR, each page becomes a searchable scan_%06d.pdf
//	Merging      pages are joined into one document in the output directory
//	Verifying    the document must exist, be non-empty and hold every page
//
// Cancellation is checked between stages. Any stage failure ends the run as
// a *scan.Error and keeps the working directory; success removes it. Only one
// run per Controller may be active.
package pipeline
