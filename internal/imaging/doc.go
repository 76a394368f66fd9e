// Package imaging provides the page image operations of the scan pipeline:
// decoding raw pages, cropping to a page box, grayscale conversion, and
// writing lossless TIFF files that carry their scan resolution.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with (0,0) at the top-left corner. Crop boxes
// are anchored at the top-left corner of the scan area, matching where paper
// registers on flatbeds and feeders.
//
// # Page Files
//
// Pages are stored as Deflate-compressed TIFF. The TIFF encoder always
// records 72 dpi, so WriteTIFF patches the XResolution and YResolution
// rationals to the scan resolution before the file is committed.
// ReadResolution reads them back.
//
// # Thread Safety
//
// All functions are stateless and can be called concurrently on different
// files. WriteTIFF replaces its target with a rename, so concurrent readers
// see either the old or the new page.
package imaging
