package render

import (
	"fmt"
	"os"
	"strings"

	"github.com/altolabs/clefshift/internal/core/domain"
)

func renderSVG(l layout, result domain.RecognitionResult, outPath string) error {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n",
		l.width, l.height, l.width, l.height)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="white"/>`+"\n", l.width, l.height)

	if result.Metadata.Title != "" {
		fmt.Fprintf(&b, `<text x="%d" y="30" font-size="18" font-family="serif">%s</text>`+"\n",
			l.marginX/2, escape(result.Metadata.Title))
	}
	fmt.Fprintf(&b, `<text x="%d" y="%d" font-size="%d" font-family="serif">%s</text>`+"\n",
		l.marginX/2-10, l.centerY+l.halfStep, 4*l.halfStep, clefLabel(result.Metadata.Clef))
	fmt.Fprintf(&b, `<text x="%d" y="50" font-size="12" font-family="serif">%d/%d  %d bpm</text>`+"\n",
		l.marginX/2, result.Metadata.TimeSignature.Beats, result.Metadata.TimeSignature.BeatUnit,
		result.Metadata.Tempo)

	for _, y := range l.staffLineYs() {
		fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="black"/>`+"\n",
			l.marginX/2, y, l.width-l.marginX/2, y)
	}

	for _, n := range result.Notes {
		x := l.noteX(n.StartTime)
		y := l.noteY(n.StaffPosition)
		for _, ly := range ledgerYs(l, n.StaffPosition) {
			fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="black"/>`+"\n",
				x-l.halfStep-3, ly, x+l.halfStep+3, ly)
		}
		fmt.Fprintf(&b, `<ellipse cx="%d" cy="%d" rx="%d" ry="%d" fill="black"/>`+"\n",
			x, y, l.halfStep, l.halfStep-1)
		if g := accidentalGlyph(n.Accidental); g != "" {
			fmt.Fprintf(&b, `<text x="%d" y="%d" font-size="%d" font-family="serif">%s</text>`+"\n",
				x-2*l.halfStep-4, y+l.halfStep/2, 2*l.halfStep, g)
		}
	}
	b.WriteString("</svg>\n")

	if err := os.WriteFile(outPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("render: write svg: %w", err)
	}
	return nil
}

func escape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
