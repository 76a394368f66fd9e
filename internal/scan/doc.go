// Package scan defines the data model shared by every stage of the scan-to-PDF
// pipeline: the immutable run request, the page artifacts that accumulate in a
// run's working directory, the pipeline stages, and the error taxonomy.
//
// # Naming
//
// Page artifacts are named scan_%06d.<ext> with a 1-based index, so lexical
// order of the names equals page order. The merged output is named after the
// run's start time: scan_YYYY-MM-DD-HH-MM-SS.pdf.
//
// # Errors
//
// Every fatal failure is reported as a *Error carrying the stage it happened
// in, a Kind, and for per-page failures the page index. A *Error matches both
// its kind sentinel and its cause under errors.Is:
//
//	if errors.Is(err, scan.ErrNoPagesScanned) {
//	    // nothing was fed
//	}
package scan
