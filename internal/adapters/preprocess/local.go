// Package preprocess implements the image-enhancement collaborator locally:
// decode, grayscale, optional contrast stretch, re-encode as PNG. Heavier
// denoise/deskew pipelines stay behind the same port.
package preprocess

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	_ "image/gif"  // register decoders for the upload formats
	_ "image/jpeg"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/altolabs/clefshift/internal/core/ports"
	"github.com/altolabs/clefshift/internal/util"
)

// Local is the bundled preprocessor.
type Local struct{}

var _ ports.Preprocessor = (*Local)(nil)

// NewLocal constructs a Local preprocessor.
func NewLocal() *Local {
	return &Local{}
}

// Preprocess converts the upload to an 8-bit grayscale PNG named
// enhanced.png in workDir. With highQuality set it additionally stretches
// the gray histogram to full range, which sharpens staff lines for the
// recognizer.
func (l *Local) Preprocess(ctx context.Context, inputPath, workDir string, highQuality bool) (string, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return "", fmt.Errorf("preprocess: open input: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("preprocess: decode image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	bounds := src.Bounds()
	gray := image.NewGray(bounds)
	minV, maxV := uint8(255), uint8(0)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := color.GrayModel.Convert(src.At(x, y)).(color.Gray)
			gray.SetGray(x, y, g)
			minV = util.Min(minV, g.Y)
			maxV = util.Max(maxV, g.Y)
		}
	}

	if highQuality && maxV > minV {
		scale := 255.0 / float64(maxV-minV)
		for i, v := range gray.Pix {
			gray.Pix[i] = uint8(util.Clamp(float64(v-minV)*scale, 0, 255))
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	outPath := filepath.Join(workDir, "enhanced.png")
	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("preprocess: create output: %w", err)
	}
	defer out.Close()
	if err := png.Encode(out, gray); err != nil {
		return "", fmt.Errorf("preprocess: encode output: %w", err)
	}
	return outPath, nil
}
