package position

import (
	"fmt"
)

// Place is a zero-based line and byte column.
type Place struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

func (p Place) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

// Span is a half-open byte range in a text.
type Span struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

func NewSpan(start, end int) Span {
	if end < start {
		end = start
	}
	return Span{Start: start, Length: end - start}
}

func (s Span) End() int {
	return s.Start + s.Length
}

// Contains reports whether offset falls inside the span. A zero-length span contains
// only its own start.
func (s Span) Contains(offset int) bool {
	if s.Length == 0 {
		return offset == s.Start
	}
	return offset >= s.Start && offset < s.End()
}

func (s Span) Shift(delta int) Span {
	return Span{Start: s.Start + delta, Length: s.Length}
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End())
}

// Overlaps reports whether the spans share a byte. A zero-length span overlaps a span
// it touches, ends included.
func (s Span) Overlaps(o Span) bool {
	if s.Length == 0 {
		return s.Start >= o.Start && s.Start <= o.End()
	}
	if o.Length == 0 {
		return o.Start >= s.Start && o.Start <= s.End()
	}
	return o.Start < s.End() && o.End() > s.Start
}

// Text slices the span out of src, clamped to its end.
func (s Span) Text(src string) string {
	start, end := s.Start, s.End()
	if start > len(src) {
		start = len(src)
	}
	if end > len(src) {
		end = len(src)
	}
	return src[start:end]
}
