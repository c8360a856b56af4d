package directive

import (
	"strings"

	"github.com/walteh/twoslash/pkg/position"
	"gitlab.com/tozd/go/errors"
)

var ErrMalformedDirective = errors.Base("malformed directive")

// Marker is a query or completions directive resolved against the clean code's line
// numbering.
type Marker struct {
	Kind Kind
	// Target is the place in the clean code the caret points at.
	Target position.Place
	// Line is the clean-code line the marker stood on, one below its target.
	Line int
	// RawLine is the marker's line in the original source.
	RawLine int
}

// Scanned is the output of Scan.
type Scanned struct {
	// Code is the source with every directive line removed, joined with "\n".
	Code string
	// Markers are the query directives in source order.
	Markers []Marker
	// NoErrors is set when a @noErrors pragma was present.
	NoErrors bool
	// CutLine is the first clean-code line that is displayed, -1 without a cut marker.
	CutLine int
	// Removed counts the directive lines stripped from the source.
	Removed int
}

// scanState is the accumulator threaded through the lines of one document.
type scanState struct {
	lines   []string
	removed int
	out     Scanned
}

func (me *scanState) step(index int, line string) error {
	d, ok := Recognize(line, index)
	if !ok {
		me.lines = append(me.lines, line)
		return nil
	}

	switch d.Kind {
	case NoErrors:
		me.out.NoErrors = true
	case Cut:
		me.out.CutLine = len(me.lines)
	case Query, Completions:
		target := index - me.removed - 1
		if target < 0 {
			return errors.Errorf("%w: %s marker on line %d has no line above it", ErrMalformedDirective, d.Kind, index+1)
		}
		me.out.Markers = append(me.out.Markers, Marker{
			Kind:    d.Kind,
			Target:  position.Place{Line: target, Character: d.Column},
			Line:    target + 1,
			RawLine: index,
		})
	}

	me.removed++
	return nil
}

// Scan strips every directive line from src and records the markers it found. Marker
// targets are expressed in the line numbering of the returned code.
func Scan(src string) (*Scanned, error) {
	state := &scanState{out: Scanned{CutLine: -1}}

	for i, line := range SplitLines(src) {
		if err := state.step(i, line); err != nil {
			return nil, err
		}
	}

	state.out.Code = strings.Join(state.lines, "\n")
	state.out.Removed = state.removed
	return &state.out, nil
}

// SplitLines splits on "\n", dropping a trailing "\r" from each line and the empty
// line after a final newline.
func SplitLines(src string) []string {
	if src == "" {
		return nil
	}
	lines := strings.Split(src, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
