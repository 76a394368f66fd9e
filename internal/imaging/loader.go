package imaging

import (
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/tiff" // Register TIFF format decoder
)

// LoadPage opens and decodes a page image. TIFF, PNG and JPEG are supported.
func LoadPage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// PageInfo contains metadata about a page image on disk.
type PageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is "tiff", "png", "jpeg" or "unknown", from the file extension.
	Format string `json:"format"`

	// Gray is true for single-channel images.
	Gray bool `json:"gray"`

	// DPI is the horizontal resolution recorded in a TIFF file, 0 if absent
	// or not a TIFF.
	DPI int `json:"dpi"`

	// FileSizeBytes is the size of the file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// Inspect loads a page and returns its metadata.
func Inspect(path string) (*PageInfo, error) {
	img, err := LoadPage(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		format = "tiff"
	case ".png":
		format = "png"
	case ".jpg", ".jpeg":
		format = "jpeg"
	}

	info := &PageInfo{
		Width:         img.Bounds().Dx(),
		Height:        img.Bounds().Dy(),
		Format:        format,
		Gray:          IsGray(img),
		FileSizeBytes: stat.Size(),
	}
	if format == "tiff" {
		if x, _, err := ReadResolution(path); err == nil {
			info.DPI = x
		}
	}
	return info, nil
}
