// Package pdf assembles page documents and the merged output with pdfcpu.
//
// Pages come from two places. OCR engines hand over finished single-page
// documents, which Concat joins in order. Without OCR, ConvertAndMerge
// wraps each page image in its own page first: Letter pages always get a
// 215.9x279.4 mm box with the image fit inside it, native pages get the
// image's physical size at the scan resolution.
//
// Every merge is checked: the output must exist, be non-empty, and hold one
// page per input page.
package pdf
