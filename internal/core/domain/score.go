package domain

import (
	"errors"
	"fmt"
)

// TimeSignature is beats per measure over the beat unit (4/4, 3/8, ...).
type TimeSignature struct {
	Beats    int `json:"beats"`
	BeatUnit int `json:"beat_unit"`
}

// Validate checks for positive members and a power-of-two beat unit.
func (ts TimeSignature) Validate() error {
	if ts.Beats <= 0 || ts.BeatUnit <= 0 {
		return fmt.Errorf("domain: invalid time signature %d/%d", ts.Beats, ts.BeatUnit)
	}
	if ts.BeatUnit&(ts.BeatUnit-1) != 0 {
		return fmt.Errorf("domain: beat unit %d is not a power of two", ts.BeatUnit)
	}
	return nil
}

// KeySignatures is the fixed set of recognized key names.
var KeySignatures = map[string]bool{
	"C": true, "G": true, "D": true, "A": true, "E": true, "B": true,
	"F#": true, "C#": true, "F": true, "Bb": true, "Eb": true, "Ab": true,
	"Db": true, "Gb": true, "Cb": true,
}

// ScoreMetadata carries the global attributes of one score.
type ScoreMetadata struct {
	TimeSignature TimeSignature `json:"time_signature"`
	KeySignature  string        `json:"key_signature"`
	Tempo         int           `json:"tempo"` // beats per minute
	Clef          Clef          `json:"clef_type"`
	Title         string        `json:"title,omitempty"`
	Composer      string        `json:"composer,omitempty"`
}

func (m ScoreMetadata) Validate() error {
	if err := m.TimeSignature.Validate(); err != nil {
		return err
	}
	if m.KeySignature != "" && !KeySignatures[m.KeySignature] {
		return fmt.Errorf("domain: unknown key signature %q", m.KeySignature)
	}
	if m.Tempo <= 0 {
		return fmt.Errorf("domain: non-positive tempo %d", m.Tempo)
	}
	if m.Clef == "" {
		return errors.New("domain: missing clef type")
	}
	return nil
}

// Measure groups notes belonging to one bar. It references notes by index
// into the owning RecognitionResult's Notes slice so that a transposed result
// can rebuild its measures without copying ambiguity. Measures exist for
// layout grouping only and carry no pitch logic.
type Measure struct {
	Number      int     `json:"number"`
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	NoteIndexes []int   `json:"note_indexes"`
}

// RecognitionResult is the unit passed between the recognizer boundary and
// the transposition engine. It is created once per task and treated as
// read-only thereafter; the transposition engine always produces a new value.
type RecognitionResult struct {
	Notes          []Note        `json:"notes"`
	Metadata       ScoreMetadata `json:"metadata"`
	Measures       []Measure     `json:"measures"`
	Confidence     float64       `json:"confidence"`
	ProcessingTime float64       `json:"processing_time"`
}

// Validate enforces the structural invariants of a recognition result:
// notes ordered by start time (ties broken by ascending pitch), every
// measure reference resolvable, confidence within [0,1].
func (r RecognitionResult) Validate() error {
	if err := r.Metadata.Validate(); err != nil {
		return err
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("domain: confidence %v outside [0,1]", r.Confidence)
	}
	if r.ProcessingTime < 0 {
		return fmt.Errorf("domain: negative processing time %v", r.ProcessingTime)
	}
	for i, n := range r.Notes {
		if err := n.Validate(); err != nil {
			return fmt.Errorf("note %d: %w", i, err)
		}
		if i > 0 {
			prev := r.Notes[i-1]
			if n.StartTime < prev.StartTime ||
				(n.StartTime == prev.StartTime && n.Pitch < prev.Pitch) {
				return fmt.Errorf("domain: notes out of order at index %d", i)
			}
		}
	}
	for _, m := range r.Measures {
		if m.EndTime < m.StartTime {
			return fmt.Errorf("domain: measure %d has inverted bounds", m.Number)
		}
		for _, idx := range m.NoteIndexes {
			if idx < 0 || idx >= len(r.Notes) {
				return fmt.Errorf("domain: measure %d references missing note %d", m.Number, idx)
			}
		}
	}
	return nil
}
