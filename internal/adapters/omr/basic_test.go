package omr

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/altolabs/clefshift/internal/core/clef"
	"github.com/altolabs/clefshift/internal/core/domain"
)

// drawStaff writes a synthetic score: five full-width staff lines 20 px
// apart plus rectangular note blobs, which is all the naive detector needs.
func drawStaff(t *testing.T, dir string, blobs []image.Rectangle) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 240, 140))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for _, y := range []int{20, 40, 60, 80, 100} {
		for x := 0; x < 240; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}
	for _, r := range blobs {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				img.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}

	path := filepath.Join(dir, "staff.png")
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

func TestBasicRecognize(t *testing.T) {
	dir := t.TempDir()
	// Two heads: one a half-space above the middle line (position 1, D4
	// under alto), one a half-space below it (position -1, B3).
	path := drawStaff(t, dir, []image.Rectangle{
		image.Rect(90, 42, 110, 59),
		image.Rect(130, 62, 150, 79),
	})

	b := NewBasic(clef.NewGeometry(), domain.ClefAlto)
	result, err := b.Recognize(context.Background(), path)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}

	if result.Metadata.Clef != domain.ClefAlto {
		t.Errorf("clef = %s, want alto", result.Metadata.Clef)
	}
	if result.Confidence <= 0 || result.Confidence > 1 {
		t.Errorf("confidence = %v", result.Confidence)
	}
	if err := result.Validate(); err != nil {
		t.Fatalf("result invalid: %v", err)
	}

	if len(result.Notes) != 2 {
		t.Fatalf("detected %d notes, want 2", len(result.Notes))
	}
	wantPitches := []int{62, 59} // D4, B3
	wantPositions := []int{1, -1}
	for i, n := range result.Notes {
		if n.Pitch != wantPitches[i] {
			t.Errorf("note %d: pitch = %d, want %d", i, n.Pitch, wantPitches[i])
		}
		if n.StaffPosition != wantPositions[i] {
			t.Errorf("note %d: position = %d, want %d", i, n.StaffPosition, wantPositions[i])
		}
	}

	if len(result.Measures) == 0 {
		t.Fatal("no measures grouped")
	}
	if got := len(result.Measures[0].NoteIndexes); got != 2 {
		t.Errorf("first measure holds %d notes, want 2", got)
	}
}

func TestBasicRecognizeEmptyStaff(t *testing.T) {
	dir := t.TempDir()
	path := drawStaff(t, dir, nil)

	b := NewBasic(clef.NewGeometry(), domain.ClefAlto)
	result, err := b.Recognize(context.Background(), path)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(result.Notes) != 0 {
		t.Errorf("detected %d notes on an empty staff", len(result.Notes))
	}
}

func TestBasicRecognizeNoStaff(t *testing.T) {
	dir := t.TempDir()
	img := image.NewGray(image.Rect(0, 0, 100, 100))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	path := filepath.Join(dir, "blank.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	b := NewBasic(clef.NewGeometry(), domain.ClefAlto)
	if _, err := b.Recognize(context.Background(), path); err == nil {
		t.Fatal("expected error for an image without staff lines")
	}
}

func TestBasicRecognizeMissingFile(t *testing.T) {
	b := NewBasic(clef.NewGeometry(), domain.ClefAlto)
	if _, err := b.Recognize(context.Background(), filepath.Join(t.TempDir(), "absent.png")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
