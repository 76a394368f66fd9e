package imaging

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// writePNG encodes img into dir and returns its path.
func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// writeTIFF encodes img as a page TIFF into dir and returns its path.
func writeTIFF(t *testing.T, dir, name string, img image.Image, dpi int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := WriteTIFF(path, img, dpi); err != nil {
		t.Fatalf("WriteTIFF failed: %v", err)
	}
	return path
}

func TestLoadPage(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{"png", writePNG(t, dir, "a.png", newFilledImage(40, 30, color.White))},
		{"tiff", writeTIFF(t, dir, "a.tif", newFilledImage(40, 30, color.White), 300)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := LoadPage(tt.path)
			if err != nil {
				t.Fatalf("LoadPage failed: %v", err)
			}
			if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 30 {
				t.Errorf("dimensions: got %dx%d, want 40x30", img.Bounds().Dx(), img.Bounds().Dy())
			}
		})
	}
}

func TestLoadPage_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadPage(filepath.Join(dir, "missing.tif")); err == nil {
		t.Error("LoadPage should fail for a missing file")
	}

	garbage := filepath.Join(dir, "garbage.tif")
	if err := os.WriteFile(garbage, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if _, err := LoadPage(garbage); err == nil {
		t.Error("LoadPage should fail for undecodable data")
	}
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	gray := image.NewGray(image.Rect(0, 0, 25, 35))
	path := writeTIFF(t, dir, "scan_000001.tif", gray, 300)

	info, err := Inspect(path)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if info.Width != 25 || info.Height != 35 {
		t.Errorf("dimensions: got %dx%d", info.Width, info.Height)
	}
	if info.Format != "tiff" {
		t.Errorf("Format = %s, want tiff", info.Format)
	}
	if !info.Gray {
		t.Error("Gray should be true")
	}
	if info.DPI != 300 {
		t.Errorf("DPI = %d, want 300", info.DPI)
	}
	if info.FileSizeBytes <= 0 {
		t.Errorf("FileSizeBytes = %d", info.FileSizeBytes)
	}

	pngPath := writePNG(t, dir, "x.png", newFilledImage(5, 5, color.Black))
	info, err = Inspect(pngPath)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if info.Format != "png" || info.DPI != 0 || info.Gray {
		t.Errorf("png info = %+v", info)
	}
}
