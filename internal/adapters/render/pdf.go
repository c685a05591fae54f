package render

import (
	"bytes"
	"fmt"
	"os"

	"github.com/altolabs/clefshift/internal/core/domain"
)

// bezierK approximates a quarter circle with one cubic curve.
const bezierK = 0.5523

// renderPDF emits a minimal single-page PDF by hand: a catalog, a page
// tree, one page with a Helvetica font, and a content stream of line and
// curve operators. Coordinates are flipped since PDF y grows upward.
func renderPDF(l layout, result domain.RecognitionResult, outPath string) error {
	content := buildContent(l, result)

	var buf bytes.Buffer
	offsets := make([]int, 0, 6)
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	obj("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	obj(fmt.Sprintf("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] "+
		"/Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>\nendobj\n", l.width, l.height))
	obj("4 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")
	obj(fmt.Sprintf("5 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(content), content))

	xrefAt := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xrefAt)

	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("render: write pdf: %w", err)
	}
	return nil
}

func buildContent(l layout, result domain.RecognitionResult) string {
	var b bytes.Buffer
	flip := func(y int) int { return l.height - y }

	line := func(x0, y0, x1, y1 int) {
		fmt.Fprintf(&b, "%d %d m %d %d l S\n", x0, flip(y0), x1, flip(y1))
	}
	disc := func(cx, cy, r int) {
		x, y := float64(cx), float64(flip(cy))
		fr, k := float64(r), bezierK*float64(r)
		fmt.Fprintf(&b, "%.1f %.1f m\n", x+fr, y)
		fmt.Fprintf(&b, "%.1f %.1f %.1f %.1f %.1f %.1f c\n", x+fr, y+k, x+k, y+fr, x, y+fr)
		fmt.Fprintf(&b, "%.1f %.1f %.1f %.1f %.1f %.1f c\n", x-k, y+fr, x-fr, y+k, x-fr, y)
		fmt.Fprintf(&b, "%.1f %.1f %.1f %.1f %.1f %.1f c\n", x-fr, y-k, x-k, y-fr, x, y-fr)
		fmt.Fprintf(&b, "%.1f %.1f %.1f %.1f %.1f %.1f c\n", x+k, y-fr, x+fr, y-k, x+fr, y)
		b.WriteString("f\n")
	}
	text := func(x, y, size int, s string) {
		fmt.Fprintf(&b, "BT /F1 %d Tf %d %d Td (%s) Tj ET\n", size, x, flip(y), pdfEscape(s))
	}

	if result.Metadata.Title != "" {
		text(l.marginX/2, 30, 18, result.Metadata.Title)
	}
	text(l.marginX/2-10, l.centerY+l.halfStep, 4*l.halfStep, clefLabel(result.Metadata.Clef))
	text(l.marginX/2, 50, 12, fmt.Sprintf("%d/%d  %d bpm",
		result.Metadata.TimeSignature.Beats, result.Metadata.TimeSignature.BeatUnit, result.Metadata.Tempo))

	for _, y := range l.staffLineYs() {
		line(l.marginX/2, y, l.width-l.marginX/2, y)
	}
	for _, n := range result.Notes {
		x := l.noteX(n.StartTime)
		y := l.noteY(n.StaffPosition)
		for _, ly := range ledgerYs(l, n.StaffPosition) {
			line(x-l.halfStep-3, ly, x+l.halfStep+3, ly)
		}
		disc(x, y, l.halfStep-1)
		if g := accidentalGlyph(n.Accidental); g != "" {
			text(x-2*l.halfStep-4, y+l.halfStep/2, 2*l.halfStep, g)
		}
	}
	return b.String()
}

func pdfEscape(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		switch r {
		case '(', ')', '\\':
			b.WriteByte('\\')
		}
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
