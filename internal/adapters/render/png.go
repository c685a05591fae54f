package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/altolabs/clefshift/internal/core/domain"
	"github.com/altolabs/clefshift/internal/util"
)

var black = color.Gray{Y: 0}

func renderPNG(l layout, result domain.RecognitionResult, outPath string) error {
	img := image.NewGray(image.Rect(0, 0, l.width, l.height))
	for i := range img.Pix {
		img.Pix[i] = 255
	}

	for _, y := range l.staffLineYs() {
		hline(img, l.marginX/2, l.width-l.marginX/2, y)
	}
	// Clef letter slot: a vertical bar at the staff's left edge.
	vline(img, l.marginX/2, l.noteY(4), l.noteY(-4))

	for _, n := range result.Notes {
		x := l.noteX(n.StartTime)
		y := l.noteY(n.StaffPosition)
		for _, ly := range ledgerYs(l, n.StaffPosition) {
			hline(img, x-l.halfStep-3, x+l.halfStep+3, ly)
		}
		fillHead(img, x, y, l.halfStep-1)
		drawAccidental(img, n.Accidental, x-2*l.halfStep-2, y, l.halfStep)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("render: create png: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("render: encode png: %w", err)
	}
	return nil
}

func hline(img *image.Gray, x0, x1, y int) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	x0 = util.Clamp(x0, 0, img.Bounds().Dx()-1)
	x1 = util.Clamp(x1, 0, img.Bounds().Dx()-1)
	for x := x0; x <= x1; x++ {
		img.SetGray(x, y, black)
	}
}

func vline(img *image.Gray, x, y0, y1 int) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	y0 = util.Clamp(y0, 0, img.Bounds().Dy()-1)
	y1 = util.Clamp(y1, 0, img.Bounds().Dy()-1)
	for y := util.Min(y0, y1); y <= util.Max(y0, y1); y++ {
		img.SetGray(x, y, black)
	}
}

// fillHead draws a filled disc.
func fillHead(img *image.Gray, cx, cy, r int) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				x, y := cx+dx, cy+dy
				if x >= 0 && x < img.Bounds().Dx() && y >= 0 && y < img.Bounds().Dy() {
					img.SetGray(x, y, black)
				}
			}
		}
	}
}

// drawAccidental sketches the accidental as strokes: two crossed pairs for
// a sharp, a stem with a hook for a flat, a half-box for a natural.
func drawAccidental(img *image.Gray, a domain.Accidental, x, y, size int) {
	switch a {
	case domain.AccidentalSharp:
		vline(img, x-1, y-size, y+size)
		vline(img, x+1, y-size, y+size)
		hline(img, x-3, x+3, y-size/2)
		hline(img, x-3, x+3, y+size/2)
	case domain.AccidentalFlat:
		vline(img, x-1, y-size, y+size/2)
		hline(img, x-1, x+2, y)
		hline(img, x-1, x+2, y+size/2)
		vline(img, x+2, y, y+size/2)
	case domain.AccidentalNatural:
		vline(img, x-1, y-size, y+size/2)
		vline(img, x+1, y-size/2, y+size)
		hline(img, x-1, x+1, y-size/2)
		hline(img, x-1, x+1, y+size/2)
	}
}
