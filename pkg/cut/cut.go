// Package cut splits clean code into the text a backend compiles and the text a reader
// is shown, and maps positions between the two.
package cut

import (
	"github.com/walteh/twoslash/pkg/position"
	"gitlab.com/tozd/go/errors"
)

// Region is the compiled text plus the displayed suffix of it. Every displayed byte
// sits at compiled offset display offset + Shift.
type Region struct {
	// Compiled is the full clean code, including context lines above the cut.
	Compiled string
	// Display is the part of Compiled that is returned to the caller.
	Display string
	// Shift is the byte offset in Compiled where Display starts.
	Shift int
	// LineShift is the number of compiled lines hidden above Display.
	LineShift int

	compiled *position.LineIndex
	display  *position.LineIndex
}

// New builds a region for compiled code cut before cutLine. A negative cutLine means
// the whole text is displayed.
func New(compiled string, cutLine int) (*Region, error) {
	idx := position.NewLineIndex(compiled)
	me := &Region{
		Compiled: compiled,
		compiled: idx,
	}

	switch {
	case cutLine <= 0:
	case cutLine >= idx.LineCount():
		me.Shift = len(compiled)
		me.LineShift = idx.LineCount()
	default:
		start, err := idx.LineStart(cutLine)
		if err != nil {
			return nil, errors.Errorf("locating cut line: %w", err)
		}
		me.Shift = start
		me.LineShift = cutLine
	}

	me.Display = compiled[me.Shift:]
	me.display = position.NewLineIndex(me.Display)
	return me, nil
}

// Cut reports whether any compiled text is hidden.
func (me *Region) Cut() bool {
	return me.Shift > 0
}

func (me *Region) CompiledIndex() *position.LineIndex {
	return me.compiled
}

// Visible reports whether a compiled offset falls in the displayed text.
func (me *Region) Visible(offset int) bool {
	return offset >= me.Shift && offset <= len(me.Compiled)
}

// ToDisplay maps a compiled offset into the display text. Offsets above the cut are
// hidden.
func (me *Region) ToDisplay(offset int) (int, bool) {
	if !me.Visible(offset) {
		return 0, false
	}
	return offset - me.Shift, true
}

// SpanToDisplay maps a compiled span into display coordinates. Spans starting above
// the cut are hidden even when they extend below it.
func (me *Region) SpanToDisplay(span position.Span) (position.Span, bool) {
	if !me.Visible(span.Start) || span.End() > len(me.Compiled) {
		return position.Span{}, false
	}
	return span.Shift(-me.Shift), true
}

// PlaceToDisplay maps a compiled line/column into display coordinates.
func (me *Region) PlaceToDisplay(p position.Place) (position.Place, bool) {
	if p.Line < me.LineShift {
		return position.Place{}, false
	}
	return position.Place{Line: p.Line - me.LineShift, Character: p.Character}, true
}

// DisplayPlace is the line/column of a display offset.
func (me *Region) DisplayPlace(offset int) (position.Place, error) {
	return me.display.Place(offset)
}
