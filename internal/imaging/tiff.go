package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"golang.org/x/image/tiff"
)

// TIFF tags carrying the resolution.
const (
	tagXResolution = 282
	tagYResolution = 283

	typeRational = 5
)

// ErrNoResolution is returned when a TIFF carries no resolution tags.
var ErrNoResolution = errors.New("tiff has no resolution tags")

// EncodeTIFF writes img as a Deflate-compressed TIFF whose resolution tags
// record dpi. Compression is lossless.
func EncodeTIFF(img image.Image, dpi int) ([]byte, error) {
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
		return nil, fmt.Errorf("failed to encode tiff: %w", err)
	}
	data := buf.Bytes()
	if err := setResolution(data, dpi); err != nil {
		return nil, err
	}
	return data, nil
}

// WriteTIFF encodes img to path, replacing any existing file. The file is
// written beside path first and renamed into place, so a failed write never
// leaves a truncated page behind.
func WriteTIFF(path string, img image.Image, dpi int) error {
	data, err := EncodeTIFF(img, dpi)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".page-*.tif")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// ReadResolution returns the X and Y resolution recorded in a TIFF file.
func ReadResolution(path string) (x, y int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, err
	}
	err = walkIFD(data, func(tag uint16, value []byte, order binary.ByteOrder) {
		num, den := order.Uint32(value[0:4]), order.Uint32(value[4:8])
		if den == 0 {
			return
		}
		switch tag {
		case tagXResolution:
			x = int(num / den)
		case tagYResolution:
			y = int(num / den)
		}
	})
	if err != nil {
		return 0, 0, err
	}
	if x == 0 || y == 0 {
		return 0, 0, ErrNoResolution
	}
	return x, y, nil
}

// setResolution rewrites the X/Y resolution rationals of the first IFD in
// place as dpi/1.
func setResolution(data []byte, dpi int) error {
	found := 0
	err := walkIFD(data, func(tag uint16, value []byte, order binary.ByteOrder) {
		order.PutUint32(value[0:4], uint32(dpi))
		order.PutUint32(value[4:8], 1)
		found++
	})
	if err != nil {
		return err
	}
	if found != 2 {
		return ErrNoResolution
	}
	return nil
}

// walkIFD calls fn with the 8-byte value of every resolution rational in the
// first image file directory. value aliases data.
func walkIFD(data []byte, fn func(tag uint16, value []byte, order binary.ByteOrder)) error {
	if len(data) < 8 {
		return errors.New("tiff: short header")
	}
	var order binary.ByteOrder
	switch string(data[0:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return errors.New("tiff: bad byte order marker")
	}

	ifd := int(order.Uint32(data[4:8]))
	if ifd+2 > len(data) {
		return errors.New("tiff: ifd offset out of range")
	}
	n := int(order.Uint16(data[ifd : ifd+2]))
	for i := 0; i < n; i++ {
		e := ifd + 2 + i*12
		if e+12 > len(data) {
			return errors.New("tiff: truncated ifd")
		}
		tag := order.Uint16(data[e : e+2])
		if tag != tagXResolution && tag != tagYResolution {
			continue
		}
		if order.Uint16(data[e+2:e+4]) != typeRational || order.Uint32(data[e+4:e+8]) != 1 {
			continue
		}
		off := int(order.Uint32(data[e+8 : e+12]))
		if off+8 > len(data) {
			return errors.New("tiff: resolution value out of range")
		}
		fn(tag, data[off:off+8], order)
	}
	return nil
}
