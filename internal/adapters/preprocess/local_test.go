package preprocess

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// writeInput saves a small RGBA image with a narrow gray range, so the
// contrast stretch has something visible to do.
func writeInput(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			v := uint8(100 + x) // grays 100..119
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	path := filepath.Join(dir, "input.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func readGray(t *testing.T, path string) *image.Gray {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	gray, ok := decoded.(*image.Gray)
	if !ok {
		t.Fatalf("output decoded as %T, want *image.Gray", decoded)
	}
	return gray
}

func TestPreprocessGrayscale(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir)

	out, err := NewLocal().Preprocess(context.Background(), input, dir, false)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if filepath.Base(out) != "enhanced.png" {
		t.Errorf("output name %q", out)
	}

	gray := readGray(t, out)
	// Without the stretch the narrow range survives.
	minV, maxV := uint8(255), uint8(0)
	for _, v := range gray.Pix {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	if maxV-minV > 40 {
		t.Errorf("gray range [%d,%d] looks stretched without high quality", minV, maxV)
	}
}

func TestPreprocessHighQualityStretches(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir)

	out, err := NewLocal().Preprocess(context.Background(), input, dir, true)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}

	gray := readGray(t, out)
	minV, maxV := uint8(255), uint8(0)
	for _, v := range gray.Pix {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	if minV != 0 || maxV != 255 {
		t.Errorf("stretched range [%d,%d], want [0,255]", minV, maxV)
	}
}

func TestPreprocessErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := NewLocal().Preprocess(context.Background(), filepath.Join(dir, "absent.png"), dir, false); err == nil {
		t.Error("expected error for missing input")
	}

	junk := filepath.Join(dir, "junk.png")
	os.WriteFile(junk, []byte("not an image"), 0o644)
	if _, err := NewLocal().Preprocess(context.Background(), junk, dir, false); err == nil {
		t.Error("expected error for undecodable input")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLocal().Preprocess(ctx, writeInput(t, dir), dir, false); err == nil {
		t.Error("expected context error")
	}
}
