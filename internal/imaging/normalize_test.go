package imaging

import (
	"image"
	"image/color"
	"testing"
)

func TestToGray(t *testing.T) {
	src := newFilledImage(4, 4, color.RGBA{200, 100, 50, 255})

	out := ToGray(src)
	gray, ok := out.(*image.Gray)
	if !ok {
		t.Fatalf("ToGray returned %T, want *image.Gray", out)
	}
	// bild weights: 0.3 R + 0.6 G + 0.1 B
	const want = 125
	if got := gray.GrayAt(2, 2).Y; got != want {
		t.Errorf("luma = %d, want %d", got, want)
	}
}

func TestToGray_AlreadyGray(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 3, 3))
	if out := ToGray(src); out != image.Image(src) {
		t.Error("gray input should be returned unchanged")
	}
}

func TestPageGeometry_Shape(t *testing.T) {
	src := newQuadrantImage(120, 160)

	tests := []struct {
		name     string
		geometry PageGeometry
		wantW    int
		wantH    int
		wantGray bool
	}{
		{"native color", PageGeometry{DPI: 300}, 120, 160, false},
		{"native gray", PageGeometry{Gray: true, DPI: 300}, 120, 160, true},
		{"cropped color", PageGeometry{CropWidth: 85, CropHeight: 110, DPI: 300}, 85, 110, false},
		{"cropped gray padded", PageGeometry{CropWidth: 200, CropHeight: 200, Gray: true, DPI: 300}, 200, 200, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.geometry.Shape(src)
			if err != nil {
				t.Fatalf("Shape failed: %v", err)
			}
			if out.Bounds().Dx() != tt.wantW || out.Bounds().Dy() != tt.wantH {
				t.Errorf("dimensions: got %dx%d, want %dx%d", out.Bounds().Dx(), out.Bounds().Dy(), tt.wantW, tt.wantH)
			}
			if IsGray(out) != tt.wantGray {
				t.Errorf("gray = %v, want %v", IsGray(out), tt.wantGray)
			}
		})
	}
}

func TestNormalizeFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTIFF(t, dir, "scan_000001.tif", newQuadrantImage(2600, 3400), 300)

	g := PageGeometry{CropWidth: 2550, CropHeight: 3300, Gray: true, DPI: 300}
	if err := NormalizeFile(path, g); err != nil {
		t.Fatalf("NormalizeFile failed: %v", err)
	}

	info, err := Inspect(path)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if info.Width != 2550 || info.Height != 3300 {
		t.Errorf("dimensions: got %dx%d, want 2550x3300", info.Width, info.Height)
	}
	if !info.Gray {
		t.Error("page should be gray")
	}
	if info.DPI != 300 {
		t.Errorf("DPI = %d, want 300", info.DPI)
	}
}

func TestNormalizeFile_Undecodable(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "ok.png", newFilledImage(2, 2, color.White))
	if err := NormalizeFile(path+".missing", PageGeometry{DPI: 300}); err == nil {
		t.Error("missing page should fail")
	}
}
