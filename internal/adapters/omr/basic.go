package omr

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"sort"
	"time"

	"github.com/altolabs/clefshift/internal/core/clef"
	"github.com/altolabs/clefshift/internal/core/domain"
	"github.com/altolabs/clefshift/internal/core/ports"
)

// Dark pixels below this gray level count toward staff/note detection.
const darkThreshold = 128

// Basic is a naive local recognizer for development and tests: it finds the
// five staff lines by horizontal darkness projection and reads note heads as
// dark blobs between them. It makes no attempt at rhythm recognition beyond
// even spacing, and reports a correspondingly modest confidence.
type Basic struct {
	geo      *clef.Geometry
	assumed  domain.Clef
	noteBeat float64 // seconds per detected note at the assumed tempo
}

var _ ports.Recognizer = (*Basic)(nil)

// NewBasic constructs a Basic recognizer that labels results with the
// assumed clef (the scanned part's clef, alto for viola scores).
func NewBasic(geo *clef.Geometry, assumed domain.Clef) *Basic {
	return &Basic{geo: geo, assumed: assumed, noteBeat: 0.5}
}

func (b *Basic) Recognize(ctx context.Context, imagePath string) (domain.RecognitionResult, error) {
	started := time.Now()

	f, err := os.Open(imagePath)
	if err != nil {
		return domain.RecognitionResult{}, fmt.Errorf("omr: open image: %w", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return domain.RecognitionResult{}, fmt.Errorf("omr: decode image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return domain.RecognitionResult{}, err
	}

	lines, err := detectStaffLines(img)
	if err != nil {
		return domain.RecognitionResult{}, err
	}
	spacing := float64(lines[4]-lines[0]) / 4
	middle := float64(lines[2])

	heads := detectNoteHeads(img, lines, spacing)
	if err := ctx.Err(); err != nil {
		return domain.RecognitionResult{}, err
	}

	notes := make([]domain.Note, 0, len(heads))
	for i, h := range heads {
		// Half a line spacing per staff position, y grows downward.
		pos := int(roundHalf((middle - float64(h.y)) / (spacing / 2)))
		pitch, err := b.geo.PitchForPosition(pos, b.assumed)
		if err != nil {
			continue // unrenderable blob, likely noise
		}
		notes = append(notes, domain.Note{
			Pitch:         pitch,
			StartTime:     float64(i) * b.noteBeat,
			Duration:      b.noteBeat,
			Velocity:      64,
			StaffPosition: pos,
			Accidental:    domain.AccidentalNone,
		})
	}

	result := domain.RecognitionResult{
		Notes: notes,
		Metadata: domain.ScoreMetadata{
			TimeSignature: domain.TimeSignature{Beats: 4, BeatUnit: 4},
			KeySignature:  "C",
			Tempo:         120,
			Clef:          b.assumed,
		},
		Measures:       groupMeasures(notes, 4*b.noteBeat),
		Confidence:     0.5,
		ProcessingTime: time.Since(started).Seconds(),
	}
	return result, nil
}

// detectStaffLines returns the y coordinates of the five staff lines, top
// to bottom, found as the rows whose dark-pixel share exceeds half the
// image width.
func detectStaffLines(img image.Image) ([]int, error) {
	bounds := img.Bounds()
	width := bounds.Dx()

	var centers []int
	runStart := -1
	for y := bounds.Min.Y; y <= bounds.Max.Y; y++ {
		dark := 0
		if y < bounds.Max.Y {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				if grayAt(img, x, y) < darkThreshold {
					dark++
				}
			}
		}
		if y < bounds.Max.Y && dark*2 >= width {
			if runStart < 0 {
				runStart = y
			}
		} else if runStart >= 0 {
			centers = append(centers, (runStart+y-1)/2)
			runStart = -1
		}
	}
	if len(centers) < 5 {
		return nil, fmt.Errorf("omr: found %d staff lines, need 5", len(centers))
	}
	sort.Ints(centers)
	return centers[:5], nil
}

type head struct{ x, y int }

// detectNoteHeads scans for dark column runs wide enough to be a note head,
// discounting the constant contribution of the staff lines themselves.
func detectNoteHeads(img image.Image, lines []int, spacing float64) []head {
	bounds := img.Bounds()
	top := lines[0] - int(4*spacing)
	bottom := lines[4] + int(4*spacing)

	minDark := int(spacing * 0.8)
	minWidth := int(spacing * 0.6)

	var heads []head
	runStart := -1
	for x := bounds.Min.X; x <= bounds.Max.X; x++ {
		dark := 0
		if x < bounds.Max.X {
			for y := top; y < bottom; y++ {
				if y < bounds.Min.Y || y >= bounds.Max.Y || onStaffLine(y, lines) {
					continue
				}
				if grayAt(img, x, y) < darkThreshold {
					dark++
				}
			}
		}
		if x < bounds.Max.X && dark >= minDark {
			if runStart < 0 {
				runStart = x
			}
		} else if runStart >= 0 {
			if x-runStart >= minWidth {
				cx := (runStart + x - 1) / 2
				heads = append(heads, head{x: cx, y: blobCenterY(img, cx, top, bottom)})
			}
			runStart = -1
		}
	}
	return heads
}

func blobCenterY(img image.Image, x, top, bottom int) int {
	bounds := img.Bounds()
	sum, count := 0, 0
	for y := top; y < bottom; y++ {
		if y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		if grayAt(img, x, y) < darkThreshold {
			sum += y
			count++
		}
	}
	if count == 0 {
		return (top + bottom) / 2
	}
	return sum / count
}

func onStaffLine(y int, lines []int) bool {
	for _, l := range lines {
		if y >= l-1 && y <= l+1 {
			return true
		}
	}
	return false
}

func grayAt(img image.Image, x, y int) uint8 {
	r, g, b, _ := img.At(x, y).RGBA()
	// Standard luma weights on 16-bit channel values.
	return uint8((299*r + 587*g + 114*b) / 1000 >> 8)
}

func roundHalf(v float64) float64 {
	if v < 0 {
		return float64(int(v - 0.5))
	}
	return float64(int(v + 0.5))
}

// groupMeasures buckets notes into fixed-length bars.
func groupMeasures(notes []domain.Note, barLen float64) []domain.Measure {
	if len(notes) == 0 {
		return nil
	}
	var measures []domain.Measure
	current := -1
	for i, n := range notes {
		bar := int(n.StartTime / barLen)
		if bar != current {
			measures = append(measures, domain.Measure{
				Number:    bar + 1,
				StartTime: float64(bar) * barLen,
				EndTime:   float64(bar+1) * barLen,
			})
			current = bar
		}
		last := &measures[len(measures)-1]
		last.NoteIndexes = append(last.NoteIndexes, i)
	}
	return measures
}
