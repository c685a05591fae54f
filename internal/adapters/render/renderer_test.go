package render

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/altolabs/clefshift/internal/core/domain"
)

func trebleResult() domain.RecognitionResult {
	return domain.RecognitionResult{
		Notes: []domain.Note{
			{Pitch: 60, StartTime: 0, Duration: 0.5, Velocity: 80, StaffPosition: -6, Accidental: domain.AccidentalNone},
			{Pitch: 66, StartTime: 0.5, Duration: 0.5, Velocity: 80, StaffPosition: -3, Accidental: domain.AccidentalSharp},
			{Pitch: 81, StartTime: 1.0, Duration: 0.5, Velocity: 80, StaffPosition: 6, Accidental: domain.AccidentalNone},
		},
		Metadata: domain.ScoreMetadata{
			TimeSignature: domain.TimeSignature{Beats: 4, BeatUnit: 4},
			KeySignature:  "C",
			Tempo:         120,
			Clef:          domain.ClefTreble,
			Title:         "Bourree (excerpt)",
		},
		Confidence: 1,
	}
}

func TestRenderPNG(t *testing.T) {
	r := NewRenderer(0, 0)
	path := filepath.Join(t.TempDir(), "out.png")
	if err := r.Render(context.Background(), trebleResult(), path, "png"); err != nil {
		t.Fatalf("Render: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("output is not a decodable png: %v", err)
	}
	if cfg.Width != 800 || cfg.Height != 600 {
		t.Errorf("page size %dx%d, want 800x600", cfg.Width, cfg.Height)
	}
}

func TestRenderSVG(t *testing.T) {
	r := NewRenderer(640, 480)
	path := filepath.Join(t.TempDir(), "out.svg")
	if err := r.Render(context.Background(), trebleResult(), path, "svg"); err != nil {
		t.Fatalf("Render: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	body := string(raw)
	if !strings.Contains(body, "<svg") {
		t.Error("output lacks an svg root element")
	}
	// Three note heads plus the staff lines.
	if n := strings.Count(body, "<ellipse"); n != 3 {
		t.Errorf("found %d note heads, want 3", n)
	}
	if n := strings.Count(body, "<line"); n < 5 {
		t.Errorf("found %d lines, want at least the 5 staff lines", n)
	}
}

func TestRenderPDF(t *testing.T) {
	r := NewRenderer(612, 792)
	path := filepath.Join(t.TempDir(), "out.pdf")
	if err := r.Render(context.Background(), trebleResult(), path, "pdf"); err != nil {
		t.Fatalf("Render: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(raw), "%PDF-1.4") {
		t.Error("output lacks the pdf header")
	}
	if !strings.Contains(string(raw), "%%EOF") {
		t.Error("output lacks the pdf trailer")
	}
}

func TestRenderUnsupportedFormat(t *testing.T) {
	r := NewRenderer(0, 0)
	err := r.Render(context.Background(), trebleResult(), filepath.Join(t.TempDir(), "out.wav"), "wav")
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestRenderCancelledContext(t *testing.T) {
	r := NewRenderer(0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Render(ctx, trebleResult(), filepath.Join(t.TempDir(), "out.png"), "png"); err == nil {
		t.Fatal("expected context error")
	}
}

func TestLedgerYs(t *testing.T) {
	l := layout{width: 800, height: 600, marginX: 60, centerY: 300, halfStep: 6}

	if ys := ledgerYs(l, 0); len(ys) != 0 {
		t.Errorf("middle line needs no ledgers, got %v", ys)
	}
	// Position 6 sits one ledger above: position 6 maps to y of position 6.
	ys := ledgerYs(l, 6)
	if len(ys) != 1 || ys[0] != l.noteY(6) {
		t.Errorf("ledgerYs(6) = %v", ys)
	}
	ys = ledgerYs(l, -8)
	if len(ys) != 2 || ys[0] != l.noteY(-6) || ys[1] != l.noteY(-8) {
		t.Errorf("ledgerYs(-8) = %v", ys)
	}
}
