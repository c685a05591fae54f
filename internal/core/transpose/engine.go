// Package transpose re-expresses a recognized score under a different clef
// while holding every pitch invariant. It is pure and synchronous; the
// orchestrator calls it between the recognition and rendering stages.
package transpose

import (
	"fmt"

	"github.com/altolabs/clefshift/internal/core/clef"
	"github.com/altolabs/clefshift/internal/core/domain"
)

// Engine converts recognition results between clef contexts using a
// Geometry for position math.
type Engine struct {
	geo *clef.Geometry
}

// NewEngine constructs an Engine.
func NewEngine(geo *clef.Geometry) *Engine {
	return &Engine{geo: geo}
}

// Convert produces a new RecognitionResult whose notes are re-expressed
// under toClef. The input is never mutated; measures are rebuilt against the
// new note slice with their time boundaries unchanged. A zero-note result
// converts to a zero-note result.
//
// Each new staff position is computed from the note's absolute pitch, not
// from its old position, so repeated conversions cannot accumulate error.
// Accidentals are untouched: a clef change is a spatial relabeling, not an
// enharmonic operation.
func (e *Engine) Convert(result domain.RecognitionResult, fromClef, toClef domain.Clef) (domain.RecognitionResult, error) {
	if !e.geo.Supports(fromClef) {
		return domain.RecognitionResult{}, domain.UnsupportedClefError{Clef: fromClef}
	}
	if !e.geo.Supports(toClef) {
		return domain.RecognitionResult{}, domain.UnsupportedClefError{Clef: toClef}
	}
	if result.Metadata.Clef != fromClef {
		return domain.RecognitionResult{}, fmt.Errorf(
			"transpose: result is in %q, not %q", result.Metadata.Clef, fromClef)
	}

	out := domain.RecognitionResult{
		Notes:          make([]domain.Note, len(result.Notes)),
		Metadata:       result.Metadata,
		Measures:       make([]domain.Measure, len(result.Measures)),
		Confidence:     result.Confidence,
		ProcessingTime: result.ProcessingTime,
	}
	out.Metadata.Clef = toClef

	for i, n := range result.Notes {
		pos, err := e.geo.StaffPosition(n.Pitch, toClef)
		if err != nil {
			return domain.RecognitionResult{}, fmt.Errorf("transpose: note %d: %w", i, err)
		}
		converted := n
		converted.StaffPosition = pos
		out.Notes[i] = converted
	}

	for i, m := range result.Measures {
		rebuilt := domain.Measure{
			Number:      m.Number,
			StartTime:   m.StartTime,
			EndTime:     m.EndTime,
			NoteIndexes: make([]int, len(m.NoteIndexes)),
		}
		copy(rebuilt.NoteIndexes, m.NoteIndexes)
		out.Measures[i] = rebuilt
	}

	if err := e.ValidateConversion(result, out, toClef); err != nil {
		return domain.RecognitionResult{}, err
	}
	return out, nil
}

// ValidateConversion asserts pitch invariance and positional correctness of
// a conversion. A failure is a ConversionInvariantError: a defect in the
// geometry configuration, never a data problem, and the caller must abort
// rather than emit a silently wrong score.
func (e *Engine) ValidateConversion(original, converted domain.RecognitionResult, toClef domain.Clef) error {
	if len(original.Notes) != len(converted.Notes) {
		return domain.ConversionInvariantError{
			Index:  -1,
			Reason: fmt.Sprintf("note count changed from %d to %d", len(original.Notes), len(converted.Notes)),
		}
	}
	for i := range original.Notes {
		orig, conv := original.Notes[i], converted.Notes[i]
		if orig.Pitch != conv.Pitch {
			return domain.ConversionInvariantError{
				Index:  i,
				Reason: fmt.Sprintf("pitch changed from %d to %d", orig.Pitch, conv.Pitch),
			}
		}
		want, err := e.geo.StaffPosition(conv.Pitch, toClef)
		if err != nil {
			return domain.ConversionInvariantError{Index: i, Reason: err.Error()}
		}
		if conv.StaffPosition != want {
			return domain.ConversionInvariantError{
				Index:  i,
				Reason: fmt.Sprintf("staff position %d, want %d", conv.StaffPosition, want),
			}
		}
		if orig.Accidental != conv.Accidental {
			return domain.ConversionInvariantError{Index: i, Reason: "accidental changed"}
		}
	}
	return nil
}
