package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestOptimizeScalesDownWideImages(t *testing.T) {
	out, err := Optimize(pngBytes(t, 4000, 2000))
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	img, format, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("Expected jpeg output, got %s", format)
	}
	if img.Bounds().Dx() != MaxWidth {
		t.Errorf("Expected width %d, got %d", MaxWidth, img.Bounds().Dx())
	}
	// Aspect ratio preserved: 4000x2000 scales to 1920x960.
	if img.Bounds().Dy() != 960 {
		t.Errorf("Expected height 960, got %d", img.Bounds().Dy())
	}
}

func TestOptimizeKeepsSmallDimensions(t *testing.T) {
	out, err := Optimize(pngBytes(t, 800, 600))
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	img, format, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("Expected jpeg output, got %s", format)
	}
	if img.Bounds().Dx() != 800 || img.Bounds().Dy() != 600 {
		t.Errorf("Expected 800x600, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestOptimizeRejectsGarbage(t *testing.T) {
	if _, err := Optimize([]byte("not an image")); err == nil {
		t.Error("Expected an error for undecodable bytes")
	}
}

func TestThumbnailIsSquare(t *testing.T) {
	out, err := Thumbnail(pngBytes(t, 640, 480), 200)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Failed to decode thumbnail: %v", err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 200 {
		t.Errorf("Expected 200x200, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}
