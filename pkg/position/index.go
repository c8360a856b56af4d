package position

import (
	"sort"
	"unicode/utf8"

	"fortio.org/safecast"
	"gitlab.com/tozd/go/errors"
)

var ErrPositionOutOfRange = errors.Base("position out of range")

// LineIndex maps between byte offsets and line/column places of one immutable text.
// It is built once over the final text; callers that remove lines must build a new one.
type LineIndex struct {
	text   string
	starts []int
}

func NewLineIndex(text string) *LineIndex {
	starts := make([]int, 1, 64)
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{text: text, starts: starts}
}

func (me *LineIndex) Text() string {
	return me.text
}

func (me *LineIndex) LineCount() int {
	return len(me.starts)
}

// lineEnd is the offset of the line's newline, or len(text) on the last line.
func (me *LineIndex) lineEnd(line int) int {
	if line+1 < len(me.starts) {
		return me.starts[line+1] - 1
	}
	return len(me.text)
}

func (me *LineIndex) LineStart(line int) (int, error) {
	if line < 0 || line >= len(me.starts) {
		return 0, errors.Errorf("%w: line %d of %d", ErrPositionOutOfRange, line, len(me.starts))
	}
	return me.starts[line], nil
}

// Offset converts a line and byte column into an absolute byte offset. The column may
// equal the line length (the position of the line terminator) but not exceed it.
func (me *LineIndex) Offset(p Place) (int, error) {
	start, err := me.LineStart(p.Line)
	if err != nil {
		return 0, err
	}
	if p.Character < 0 || start+p.Character > me.lineEnd(p.Line) {
		return 0, errors.Errorf("%w: column %d on line %d (length %d)", ErrPositionOutOfRange, p.Character, p.Line, me.lineEnd(p.Line)-start)
	}
	return start + p.Character, nil
}

func (me *LineIndex) Place(offset int) (Place, error) {
	if offset < 0 || offset > len(me.text) {
		return Place{}, errors.Errorf("%w: offset %d of %d", ErrPositionOutOfRange, offset, len(me.text))
	}
	line := sort.Search(len(me.starts), func(i int) bool { return me.starts[i] > offset }) - 1
	return Place{Line: line, Character: offset - me.starts[line]}, nil
}

// UTF16Place converts an offset into the line and UTF-16 code unit column used on the
// LSP wire.
func (me *LineIndex) UTF16Place(offset int) (line uint32, character uint32, err error) {
	p, err := me.Place(offset)
	if err != nil {
		return 0, 0, err
	}
	units := 0
	for _, r := range me.text[me.starts[p.Line]:offset] {
		units += utf16Len(r)
	}
	if line, err = safecast.Conv[uint32](p.Line); err != nil {
		return 0, 0, errors.Errorf("converting line: %w", err)
	}
	if character, err = safecast.Conv[uint32](units); err != nil {
		return 0, 0, errors.Errorf("converting character: %w", err)
	}
	return line, character, nil
}

// OffsetFromUTF16 is the inverse of UTF16Place. Columns past the end of the line clamp
// to the line end, matching how language servers treat them.
func (me *LineIndex) OffsetFromUTF16(line, character uint32) (int, error) {
	l, err := safecast.Conv[int](line)
	if err != nil {
		return 0, errors.Errorf("converting line: %w", err)
	}
	start, err := me.LineStart(l)
	if err != nil {
		return 0, err
	}
	end := me.lineEnd(l)
	units := uint32(0)
	off := start
	for off < end && units < character {
		r, size := utf8.DecodeRuneInString(me.text[off:end])
		units += uint32(utf16Len(r))
		off += size
	}
	return off, nil
}

func utf16Len(r rune) int {
	if r > 0xFFFF {
		return 2
	}
	return 1
}
