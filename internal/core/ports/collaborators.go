// Package ports declares the interfaces between the core services and the
// adapters that implement them. The core depends only on these; wiring picks
// the implementations.
package ports

import (
	"context"

	"github.com/altolabs/clefshift/internal/core/domain"
)

// Preprocessor is the external image-enhancement collaborator. It consumes
// the uploaded image and writes an enhanced copy into the task's work
// directory, returning the new path. Implementations must honor ctx
// cancellation between expensive steps.
type Preprocessor interface {
	Preprocess(ctx context.Context, inputPath, workDir string, highQuality bool) (string, error)
}

// Recognizer is the optical-music-recognition collaborator. It turns an
// enhanced score image into a structured RecognitionResult.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (domain.RecognitionResult, error)
}

// Renderer is the notation-typesetting collaborator. It writes the score as
// the requested visual format (png, svg, pdf) to outPath.
type Renderer interface {
	Render(ctx context.Context, result domain.RecognitionResult, outPath, format string) error
}

// MIDIWriter is the MIDI codec collaborator. It encodes the score's notes
// and metadata as a standard MIDI file at outPath.
type MIDIWriter interface {
	WriteMIDI(ctx context.Context, result domain.RecognitionResult, outPath string) error
}
