// Package clef provides the pure, stateless mapping between absolute MIDI
// pitch and a clef's staff coordinate system.
//
// A staff position is a signed offset from the staff's middle line in
// half-line steps (line to adjacent space = 1). Positions -4..+4 lie on the
// five-line staff; anything beyond needs ledger lines. Positions are
// diatonic: each step is one letter name, and a black-key pitch is spelled
// as the natural below it plus a sharp.
package clef

import (
	"github.com/altolabs/clefshift/internal/core/domain"
	"github.com/altolabs/clefshift/internal/util"
)

// AltoToTrebleOffset is the fixed signed offset applied to an alto staff
// position to obtain the treble position of the same pitch. It falls out of
// the displacement between the clefs' middle-line reference pitches (C4 for
// alto, B4 for treble) and is its own inverse under negation.
const AltoToTrebleOffset = -6

// DefaultMaxLedgerLines bounds how far outside the staff a position may sit
// before it is reported as unrenderable.
const DefaultMaxLedgerLines = 6

// staffReach is the outermost on-staff position (top/bottom line).
const staffReach = 4

// degreeOf maps a pitch class to its diatonic degree (C=0 .. B=6), spelling
// black keys sharp-wise.
var degreeOf = [12]int{0, 0, 1, 1, 2, 3, 3, 4, 4, 5, 5, 6}

// altered marks the pitch classes that need a sharp under that spelling.
var altered = [12]bool{false, true, false, true, false, false, true, false, true, false, true, false}

// semitoneOf is the inverse of degreeOf for natural notes.
var semitoneOf = [7]int{0, 2, 4, 5, 7, 9, 11}

// LedgerLines describes the auxiliary lines a position requires.
type LedgerLines struct {
	Count int
	Above bool
}

// Geometry resolves staff positions for a configurable set of clefs. The
// zero value is not usable; call NewGeometry.
type Geometry struct {
	middle     map[domain.Clef]int // clef -> MIDI pitch sitting on the middle line
	maxLedgers int
}

// NewGeometry returns a Geometry supporting the alto, treble and bass clefs
// with the default ledger-line bound.
func NewGeometry() *Geometry {
	return &Geometry{
		middle: map[domain.Clef]int{
			domain.ClefAlto:   60, // C4
			domain.ClefTreble: 71, // B4
			domain.ClefBass:   50, // D3
		},
		maxLedgers: DefaultMaxLedgerLines,
	}
}

// Register adds or overrides a clef by its middle-line pitch, so new clef
// pairs can be supported without touching the transposition engine.
func (g *Geometry) Register(c domain.Clef, middlePitch int) {
	g.middle[c] = middlePitch
}

// SetMaxLedgerLines overrides the renderability bound.
func (g *Geometry) SetMaxLedgerLines(n int) {
	if n > 0 {
		g.maxLedgers = n
	}
}

// Supports reports whether c has a registered reference pitch.
func (g *Geometry) Supports(c domain.Clef) bool {
	_, ok := g.middle[c]
	return ok
}

// diatonicNumber counts letter-name steps from C-1, the bottom of the MIDI
// range, so differences between two pitches are step distances.
func diatonicNumber(pitch int) int {
	return (pitch/12)*7 + degreeOf[pitch%12]
}

// StaffPosition computes the staff position of pitch under clef.
// It fails with an OutOfRangeError when the position would need more ledger
// lines than configured; that signals "unrenderable", not "invalid pitch".
func (g *Geometry) StaffPosition(pitch int, c domain.Clef) (int, error) {
	mid, ok := g.middle[c]
	if !ok {
		return 0, domain.UnsupportedClefError{Clef: c}
	}
	pos := diatonicNumber(pitch) - diatonicNumber(mid)
	if ll := Ledger(pos); ll.Count > g.maxLedgers {
		return 0, domain.OutOfRangeError{Position: pos, MaxLedgers: g.maxLedgers}
	}
	return pos, nil
}

// AccidentalFor returns the accidental implied by the sharp-wise spelling of
// pitch: sharp for black keys, none otherwise.
func AccidentalFor(pitch int) domain.Accidental {
	if altered[((pitch%12)+12)%12] {
		return domain.AccidentalSharp
	}
	return domain.AccidentalNone
}

// PitchForPosition is the inverse of StaffPosition for natural pitches: it
// returns the unaltered pitch sitting at position under clef.
func (g *Geometry) PitchForPosition(position int, c domain.Clef) (int, error) {
	mid, ok := g.middle[c]
	if !ok {
		return 0, domain.UnsupportedClefError{Clef: c}
	}
	if ll := Ledger(position); ll.Count > g.maxLedgers {
		return 0, domain.OutOfRangeError{Position: position, MaxLedgers: g.maxLedgers}
	}
	dn := diatonicNumber(mid) + position
	if dn < 0 {
		return 0, domain.OutOfRangeError{Position: position, MaxLedgers: g.maxLedgers}
	}
	return (dn/7)*12 + semitoneOf[dn%7], nil
}

// PitchAt resolves position plus accidental back to an absolute pitch,
// completing the round trip for altered notes.
func (g *Geometry) PitchAt(position int, c domain.Clef, acc domain.Accidental) (int, error) {
	p, err := g.PitchForPosition(position, c)
	if err != nil {
		return 0, err
	}
	switch acc {
	case domain.AccidentalSharp:
		p++
	case domain.AccidentalFlat:
		p--
	}
	return p, nil
}

// Offset returns the fixed signed offset that re-expresses a staff position
// under from as a position under to. For alto->treble this is
// AltoToTrebleOffset.
func (g *Geometry) Offset(from, to domain.Clef) (int, error) {
	fm, ok := g.middle[from]
	if !ok {
		return 0, domain.UnsupportedClefError{Clef: from}
	}
	tm, ok := g.middle[to]
	if !ok {
		return 0, domain.UnsupportedClefError{Clef: to}
	}
	return diatonicNumber(fm) - diatonicNumber(tm), nil
}

// Ledger returns the ledger lines required at position. On-staff positions
// need none; beyond the outer lines one ledger line appears every two
// half-line steps, so the count never decreases as |position| grows.
func Ledger(position int) LedgerLines {
	beyond := util.Abs(position) - staffReach
	if beyond <= 0 {
		return LedgerLines{}
	}
	return LedgerLines{Count: beyond / 2, Above: position > 0}
}
