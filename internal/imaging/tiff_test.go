package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"
)

func TestEncodeTIFF_Resolution(t *testing.T) {
	tests := []struct {
		name string
		img  image.Image
		dpi  int
	}{
		{"rgba 300", newQuadrantImage(64, 48), 300},
		{"gray 300", image.NewGray(image.Rect(0, 0, 10, 10)), 300},
		{"rgba 150", newFilledImage(8, 8, color.White), 150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTIFF(t, t.TempDir(), "page.tif", tt.img, tt.dpi)

			x, y, err := ReadResolution(path)
			if err != nil {
				t.Fatalf("ReadResolution failed: %v", err)
			}
			if x != tt.dpi || y != tt.dpi {
				t.Errorf("resolution = %dx%d, want %d", x, y, tt.dpi)
			}
		})
	}
}

func TestEncodeTIFF_Lossless(t *testing.T) {
	src := newQuadrantImage(33, 17)
	data, err := EncodeTIFF(src, 300)
	if err != nil {
		t.Fatalf("EncodeTIFF failed: %v", err)
	}

	decoded, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	for y := 0; y < 17; y++ {
		for x := 0; x < 33; x++ {
			r1, g1, b1, _ := src.At(x, y).RGBA()
			r2, g2, b2, _ := decoded.At(x, y).RGBA()
			if r1 != r2 || g1 != g2 || b1 != b2 {
				t.Fatalf("pixel (%d,%d) changed: %v -> %v", x, y, src.At(x, y), decoded.At(x, y))
			}
		}
	}
}

func TestWriteTIFF_ReplacesInPlace(t *testing.T) {
	dir := t.TempDir()
	path := writeTIFF(t, dir, "scan_000001.tif", newFilledImage(100, 100, color.White), 300)
	writeTIFF(t, dir, "scan_000001.tif", newFilledImage(10, 20, color.Black), 300)

	img, err := LoadPage(path)
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	if img.Bounds().Dx() != 10 || img.Bounds().Dy() != 20 {
		t.Errorf("page not replaced: %v", img.Bounds())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestReadResolution_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, _, err := ReadResolution(filepath.Join(dir, "missing.tif")); err == nil {
		t.Error("missing file should fail")
	}

	bad := filepath.Join(dir, "bad.tif")
	if err := os.WriteFile(bad, []byte("PK\x03\x04junkjunk"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if _, _, err := ReadResolution(bad); err == nil {
		t.Error("non-tiff data should fail")
	}

	// A minimal little-endian header with an empty IFD.
	empty := []byte{'I', 'I', 42, 0, 8, 0, 0, 0, 0, 0}
	emptyPath := filepath.Join(dir, "empty.tif")
	if err := os.WriteFile(emptyPath, empty, 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if _, _, err := ReadResolution(emptyPath); !errors.Is(err, ErrNoResolution) {
		t.Errorf("empty ifd: got %v, want ErrNoResolution", err)
	}
}
