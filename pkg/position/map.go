package position

// SpanSet remembers the spans already seen, keeping the first one added.
type SpanSet struct {
	spans map[Span]struct{}
}

func NewSpanSet() *SpanSet {
	return &SpanSet{
		spans: make(map[Span]struct{}),
	}
}

// Add records span and reports whether it was new.
func (me *SpanSet) Add(span Span) bool {
	if _, ok := me.spans[span]; ok {
		return false
	}
	me.spans[span] = struct{}{}
	return true
}
