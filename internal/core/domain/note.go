package domain

import "fmt"

// Accidental is the notated alteration attached to a note head.
type Accidental string

const (
	AccidentalNone    Accidental = "none"
	AccidentalSharp   Accidental = "sharp"
	AccidentalFlat    Accidental = "flat"
	AccidentalNatural Accidental = "natural"
)

// Valid reports whether a is one of the supported accidental values.
func (a Accidental) Valid() bool {
	switch a {
	case AccidentalNone, AccidentalSharp, AccidentalFlat, AccidentalNatural:
		return true
	}
	return false
}

// Clef identifies the notational convention a staff position is relative to.
type Clef string

const (
	ClefAlto   Clef = "alto"
	ClefTreble Clef = "treble"
	ClefBass   Clef = "bass"
)

// Note is one recognized or transposed musical event.
//
// Pitch is an absolute MIDI semitone number and is never mutated by a clef
// change; only StaffPosition (and the ledger lines it implies) changes when
// the clef context changes.
type Note struct {
	Pitch         int        `json:"pitch"`
	StartTime     float64    `json:"start_time"`
	Duration      float64    `json:"duration"`
	Velocity      int        `json:"velocity"`
	StaffPosition int        `json:"staff_position"`
	Accidental    Accidental `json:"accidental"`
}

// Validate checks the note's field bounds at ingestion time.
func (n Note) Validate() error {
	if n.Pitch < 0 || n.Pitch > 127 {
		return fmt.Errorf("domain: pitch %d outside MIDI range", n.Pitch)
	}
	if n.StartTime < 0 {
		return fmt.Errorf("domain: negative start time %v", n.StartTime)
	}
	if n.Duration <= 0 {
		return fmt.Errorf("domain: non-positive duration %v", n.Duration)
	}
	if n.Velocity < 0 || n.Velocity > 127 {
		return fmt.Errorf("domain: velocity %d outside range", n.Velocity)
	}
	if !n.Accidental.Valid() {
		return fmt.Errorf("domain: unsupported accidental %q", n.Accidental)
	}
	return nil
}
