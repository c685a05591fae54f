// Package midifile is the MIDI codec collaborator: it encodes a recognized
// score as a standard MIDI file. Binary framing is entirely gomidi's job;
// this package only maps notes and metadata onto SMF events.
package midifile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/altolabs/clefshift/internal/core/domain"
	"github.com/altolabs/clefshift/internal/core/ports"
)

const ticksPerBeat = 480

// Writer implements the MIDIWriter port.
type Writer struct {
	ticks smf.MetricTicks
}

var _ ports.MIDIWriter = (*Writer)(nil)

// NewWriter constructs a Writer at the conventional 480 ticks per beat.
func NewWriter() *Writer {
	return &Writer{ticks: smf.MetricTicks(ticksPerBeat)}
}

// midiEvent is one scheduled channel message.
type midiEvent struct {
	tick uint32
	on   bool
	key  uint8
	vel  uint8
}

// WriteMIDI encodes the result's notes on channel 0 with the score's tempo
// and meter as track metadata.
func (w *Writer) WriteMIDI(ctx context.Context, result domain.RecognitionResult, outPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	meta := result.Metadata
	var tr smf.Track
	if meta.Title != "" {
		tr.Add(0, smf.MetaTrackSequenceName(meta.Title))
	}
	if meta.Composer != "" {
		tr.Add(0, smf.MetaText(meta.Composer))
	}
	tr.Add(0, smf.MetaMeter(uint8(meta.TimeSignature.Beats), uint8(meta.TimeSignature.BeatUnit)))
	tr.Add(0, smf.MetaTempo(float64(meta.Tempo)))

	events := make([]midiEvent, 0, 2*len(result.Notes))
	for _, n := range result.Notes {
		key := uint8(n.Pitch)
		vel := uint8(n.Velocity)
		events = append(events,
			midiEvent{tick: w.toTicks(n.StartTime, meta.Tempo), on: true, key: key, vel: vel},
			midiEvent{tick: w.toTicks(n.StartTime+n.Duration, meta.Tempo), on: false, key: key},
		)
	}
	// Offs precede ons at the same tick so repeated pitches re-articulate.
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return !events[i].on && events[j].on
	})

	var last uint32
	for _, ev := range events {
		delta := ev.tick - last
		last = ev.tick
		if ev.on {
			tr.Add(delta, midi.NoteOn(0, ev.key, ev.vel))
		} else {
			tr.Add(delta, midi.NoteOff(0, ev.key))
		}
	}
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = w.ticks
	s.Add(tr)

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("midifile: create file: %w", err)
	}
	defer f.Close()
	if _, err := s.WriteTo(f); err != nil {
		return fmt.Errorf("midifile: write file: %w", err)
	}
	return nil
}

// toTicks converts wall-clock seconds to MIDI ticks at the score tempo.
func (w *Writer) toTicks(seconds float64, tempo int) uint32 {
	beats := seconds * float64(tempo) / 60
	return uint32(beats * ticksPerBeat)
}

// ReadFile parses a standard MIDI file, converting parser panics into
// errors (gomidi panics on some malformed inputs).
func ReadFile(path string) (s *smf.SMF, e error) {
	defer func() {
		if r, ok := recover().(string); ok {
			e = errors.New(r)
		}
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("midifile: read file: %w", err)
	}
	parsed, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("midifile: parse file: %w", err)
	}
	return parsed, nil
}
