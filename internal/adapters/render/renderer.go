// Package render implements the notation-typesetting collaborator with a
// deliberately plain engraving: five staff lines, note heads, ledger lines
// and accidental marks. It exists so the pipeline produces real artifacts
// without an external typesetter; layout aesthetics are out of scope.
package render

import (
	"context"
	"fmt"

	"github.com/altolabs/clefshift/internal/core/clef"
	"github.com/altolabs/clefshift/internal/core/domain"
	"github.com/altolabs/clefshift/internal/core/ports"
	"github.com/altolabs/clefshift/internal/util"
)

// Renderer dispatches to the per-format writers.
type Renderer struct {
	width  int
	height int
}

var _ ports.Renderer = (*Renderer)(nil)

// NewRenderer constructs a Renderer with the given page size in pixels
// (points for pdf). Zero values fall back to 800x600.
func NewRenderer(width, height int) *Renderer {
	if width <= 0 {
		width = 800
	}
	if height <= 0 {
		height = 600
	}
	return &Renderer{width: width, height: height}
}

// Render writes result to outPath in the requested format.
func (r *Renderer) Render(ctx context.Context, result domain.RecognitionResult, outPath, format string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := r.newLayout(result)
	switch format {
	case "png":
		return renderPNG(l, result, outPath)
	case "svg":
		return renderSVG(l, result, outPath)
	case "pdf":
		return renderPDF(l, result, outPath)
	default:
		return fmt.Errorf("render: unsupported format %q", format)
	}
}

// layout is the shared coordinate system: staff centered vertically, time
// mapped linearly onto x.
type layout struct {
	width, height int
	marginX       int
	centerY       int
	halfStep      int // pixels per half-line step
	pxPerSec      float64
}

func (r *Renderer) newLayout(result domain.RecognitionResult) layout {
	l := layout{
		width:    r.width,
		height:   r.height,
		marginX:  60,
		centerY:  r.height / 2,
		halfStep: 6,
	}
	end := 1.0
	for _, n := range result.Notes {
		end = util.Max(end, n.StartTime+n.Duration)
	}
	l.pxPerSec = float64(l.width-2*l.marginX) / end
	return l
}

// noteX maps a start time to its horizontal position.
func (l layout) noteX(t float64) int {
	return l.marginX + int(t*l.pxPerSec)
}

// noteY maps a staff position to its vertical position; y grows downward.
func (l layout) noteY(pos int) int {
	return l.centerY - pos*l.halfStep
}

// staffLineYs are the five line positions -4,-2,0,2,4.
func (l layout) staffLineYs() [5]int {
	var ys [5]int
	for i, pos := range [5]int{-4, -2, 0, 2, 4} {
		ys[i] = l.noteY(pos)
	}
	return ys
}

// ledgerYs returns the y of every ledger line a note at pos needs.
func ledgerYs(l layout, pos int) []int {
	ll := clef.Ledger(pos)
	ys := make([]int, 0, ll.Count)
	for k := 1; k <= ll.Count; k++ {
		p := 4 + 2*k
		if !ll.Above {
			p = -p
		}
		ys = append(ys, l.noteY(p))
	}
	return ys
}

func accidentalGlyph(a domain.Accidental) string {
	switch a {
	case domain.AccidentalSharp:
		return "#"
	case domain.AccidentalFlat:
		return "b"
	case domain.AccidentalNatural:
		return "n"
	}
	return ""
}

func clefLabel(c domain.Clef) string {
	switch c {
	case domain.ClefTreble:
		return "G"
	case domain.ClefAlto:
		return "C"
	case domain.ClefBass:
		return "F"
	}
	return "?"
}
