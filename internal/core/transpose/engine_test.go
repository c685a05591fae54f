package transpose

import (
	"errors"
	"testing"

	"github.com/altolabs/clefshift/internal/core/clef"
	"github.com/altolabs/clefshift/internal/core/domain"
)

func altoScore(notes ...domain.Note) domain.RecognitionResult {
	return domain.RecognitionResult{
		Notes: notes,
		Metadata: domain.ScoreMetadata{
			TimeSignature: domain.TimeSignature{Beats: 4, BeatUnit: 4},
			KeySignature:  "C",
			Tempo:         120,
			Clef:          domain.ClefAlto,
		},
		Confidence: 0.9,
	}
}

func altoNote(pitch, position int, acc domain.Accidental, start float64) domain.Note {
	return domain.Note{
		Pitch:         pitch,
		StartTime:     start,
		Duration:      0.5,
		Velocity:      80,
		StaffPosition: position,
		Accidental:    acc,
	}
}

func TestConvertAltoToTreble(t *testing.T) {
	e := NewEngine(clef.NewGeometry())
	in := altoScore(
		altoNote(60, 0, domain.AccidentalNone, 0),   // C4 middle line
		altoNote(64, 2, domain.AccidentalNone, 0.5), // E4
		altoNote(66, 3, domain.AccidentalSharp, 1),  // F#4
		altoNote(55, -3, domain.AccidentalNone, 1.5), // G3
	)

	out, err := e.Convert(in, domain.ClefAlto, domain.ClefTreble)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if out.Metadata.Clef != domain.ClefTreble {
		t.Errorf("clef = %s, want treble", out.Metadata.Clef)
	}

	wantPositions := []int{-6, -4, -3, -9}
	for i, n := range out.Notes {
		orig := in.Notes[i]
		if n.Pitch != orig.Pitch {
			t.Errorf("note %d: pitch changed %d -> %d", i, orig.Pitch, n.Pitch)
		}
		if n.StaffPosition != wantPositions[i] {
			t.Errorf("note %d: position = %d, want %d", i, n.StaffPosition, wantPositions[i])
		}
		if n.Accidental != orig.Accidental {
			t.Errorf("note %d: accidental changed", i)
		}
		if n.StartTime != orig.StartTime || n.Duration != orig.Duration {
			t.Errorf("note %d: timing changed", i)
		}
	}

	// Every shift matches the fixed alto->treble offset.
	for i, n := range out.Notes {
		if n.StaffPosition-in.Notes[i].StaffPosition != clef.AltoToTrebleOffset {
			t.Errorf("note %d: shift %d, want %d", i,
				n.StaffPosition-in.Notes[i].StaffPosition, clef.AltoToTrebleOffset)
		}
	}
}

func TestConvertRoundTripRestoresPositions(t *testing.T) {
	e := NewEngine(clef.NewGeometry())
	in := altoScore(
		altoNote(60, 0, domain.AccidentalNone, 0),
		altoNote(69, 5, domain.AccidentalNone, 1),
	)

	treble, err := e.Convert(in, domain.ClefAlto, domain.ClefTreble)
	if err != nil {
		t.Fatal(err)
	}
	back, err := e.Convert(treble, domain.ClefTreble, domain.ClefAlto)
	if err != nil {
		t.Fatal(err)
	}
	for i := range in.Notes {
		if back.Notes[i] != in.Notes[i] {
			t.Errorf("note %d not restored: %+v vs %+v", i, back.Notes[i], in.Notes[i])
		}
	}
}

func TestConvertEmptyScore(t *testing.T) {
	e := NewEngine(clef.NewGeometry())
	out, err := e.Convert(altoScore(), domain.ClefAlto, domain.ClefTreble)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(out.Notes) != 0 {
		t.Errorf("got %d notes, want 0", len(out.Notes))
	}
	if out.Metadata.Clef != domain.ClefTreble {
		t.Errorf("clef = %s, want treble", out.Metadata.Clef)
	}
}

func TestConvertDoesNotMutateInput(t *testing.T) {
	e := NewEngine(clef.NewGeometry())
	in := altoScore(altoNote(60, 0, domain.AccidentalNone, 0))
	in.Measures = []domain.Measure{{Number: 1, StartTime: 0, EndTime: 2, NoteIndexes: []int{0}}}

	out, err := e.Convert(in, domain.ClefAlto, domain.ClefTreble)
	if err != nil {
		t.Fatal(err)
	}
	out.Notes[0].Pitch = 99
	out.Measures[0].NoteIndexes[0] = 99

	if in.Notes[0].Pitch != 60 {
		t.Error("input note mutated through output")
	}
	if in.Measures[0].NoteIndexes[0] != 0 {
		t.Error("input measure mutated through output")
	}
}

func TestConvertRebuildsMeasures(t *testing.T) {
	e := NewEngine(clef.NewGeometry())
	in := altoScore(
		altoNote(60, 0, domain.AccidentalNone, 0),
		altoNote(62, 1, domain.AccidentalNone, 2),
	)
	in.Measures = []domain.Measure{
		{Number: 1, StartTime: 0, EndTime: 2, NoteIndexes: []int{0}},
		{Number: 2, StartTime: 2, EndTime: 4, NoteIndexes: []int{1}},
	}

	out, err := e.Convert(in, domain.ClefAlto, domain.ClefTreble)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Measures) != 2 {
		t.Fatalf("got %d measures, want 2", len(out.Measures))
	}
	for i, m := range out.Measures {
		orig := in.Measures[i]
		if m.StartTime != orig.StartTime || m.EndTime != orig.EndTime || m.Number != orig.Number {
			t.Errorf("measure %d boundaries changed: %+v", i, m)
		}
	}
}

func TestConvertWrongSourceClef(t *testing.T) {
	e := NewEngine(clef.NewGeometry())
	in := altoScore(altoNote(60, 0, domain.AccidentalNone, 0))
	if _, err := e.Convert(in, domain.ClefTreble, domain.ClefAlto); err == nil {
		t.Fatal("expected error converting from a clef the score is not in")
	}
}

func TestConvertUnsupportedClef(t *testing.T) {
	e := NewEngine(clef.NewGeometry())
	in := altoScore()
	if _, err := e.Convert(in, domain.ClefAlto, domain.Clef("tenor")); !errors.Is(err, domain.ErrUnsupportedClef) {
		t.Fatalf("expected ErrUnsupportedClef, got %v", err)
	}
}

func TestConvertOutOfRange(t *testing.T) {
	geo := clef.NewGeometry()
	e := NewEngine(geo)
	// C8 is renderable under alto only with a generous ledger bound; under
	// the default bound the conversion must refuse rather than clamp.
	in := altoScore(domain.Note{
		Pitch: 108, StartTime: 0, Duration: 1, Velocity: 80,
		StaffPosition: 28, Accidental: domain.AccidentalNone,
	})
	if _, err := e.Convert(in, domain.ClefAlto, domain.ClefTreble); !errors.Is(err, domain.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestValidateConversionCatchesPitchDrift(t *testing.T) {
	e := NewEngine(clef.NewGeometry())
	in := altoScore(altoNote(60, 0, domain.AccidentalNone, 0))
	out, err := e.Convert(in, domain.ClefAlto, domain.ClefTreble)
	if err != nil {
		t.Fatal(err)
	}

	broken := out
	broken.Notes = append([]domain.Note(nil), out.Notes...)
	broken.Notes[0].Pitch = 62
	err = e.ValidateConversion(in, broken, domain.ClefTreble)
	if !errors.Is(err, domain.ErrConversionInvariant) {
		t.Fatalf("expected ErrConversionInvariant, got %v", err)
	}

	broken.Notes[0].Pitch = 60
	broken.Notes[0].StaffPosition = 0
	err = e.ValidateConversion(in, broken, domain.ClefTreble)
	if !errors.Is(err, domain.ErrConversionInvariant) {
		t.Fatalf("expected ErrConversionInvariant for wrong position, got %v", err)
	}
}
