package protobuf

import (
	"context"
	"sort"
	"strings"

	"github.com/walteh/twoslash/pkg/backend"
	"github.com/walteh/twoslash/pkg/position"
)

var (
	_ backend.Snapshot    = (*snapshot)(nil)
	_ backend.TokenLister = (*snapshot)(nil)
)

var scalarTypes = []string{
	"double", "float",
	"int32", "int64", "uint32", "uint64", "sint32", "sint64",
	"fixed32", "fixed64", "sfixed32", "sfixed64",
	"bool", "string", "bytes",
}

// snapshot holds a linked file's index, or only its problems when linking failed.
type snapshot struct {
	text     string
	index    *index
	problems []problem
}

func (me *snapshot) Hover(ctx context.Context, offset int) (*backend.Hover, error) {
	if me.index == nil {
		return nil, nil
	}
	e, ok := me.index.at(offset)
	if !ok {
		return nil, nil
	}
	return &backend.Hover{Text: e.text, Span: e.span}, nil
}

// Complete offers the declared message and enum names followed by the scalar types
// that start with the name typed up to and including offset.
func (me *snapshot) Complete(ctx context.Context, offset int) (*backend.Completions, error) {
	start := offset + 1
	if start > len(me.text) {
		start = len(me.text)
	}
	end := start
	for start > 0 && isNameByte(me.text[start-1]) {
		start--
	}
	prefix := me.text[start:end]

	var candidates []backend.CompletionItem
	if me.index != nil {
		for _, name := range me.index.types {
			candidates = append(candidates, backend.CompletionItem{Name: name, Kind: "type"})
		}
	}
	for _, name := range scalarTypes {
		candidates = append(candidates, backend.CompletionItem{Name: name, Kind: "scalar"})
	}

	items := make([]backend.CompletionItem, 0, len(candidates))
	for _, c := range candidates {
		if strings.HasPrefix(c.Name, prefix) {
			items = append(items, c)
		}
	}

	return &backend.Completions{
		Items:  items,
		Prefix: prefix,
		Span:   &position.Span{Start: start, Length: end - start},
	}, nil
}

func (me *snapshot) Diagnostics(ctx context.Context) ([]backend.Diagnostic, error) {
	out := make([]backend.Diagnostic, 0, len(me.problems))
	for _, p := range me.problems {
		off := p.offset
		if off < 0 {
			off = 0
		}
		if off > len(me.text) {
			off = len(me.text)
		}
		id := "proto_error"
		if p.severity == backend.SeverityWarning {
			id = "proto_warning"
		}
		length := p.length
		if length == 0 || off+length > len(me.text) {
			length = tokenLen(me.text, off)
		}
		out = append(out, backend.Diagnostic{
			Message:  p.message,
			ID:       id,
			Severity: p.severity,
			Span:     position.Span{Start: off, Length: length},
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Span.Start < out[j].Span.Start })
	return out, nil
}

func (me *snapshot) Tokens(ctx context.Context) ([]position.Span, error) {
	if me.index == nil {
		return nil, nil
	}
	set := position.NewSpanSet()
	spans := make([]position.Span, 0, len(me.index.entries))
	for _, e := range me.index.entries {
		if set.Add(e.span) {
			spans = append(spans, e.span)
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return spans, nil
}

func (me *snapshot) Close() error {
	return nil
}

func tokenLen(text string, off int) int {
	end := off
	for end < len(text) && isNameByte(text[end]) {
		end++
	}
	return end - off
}

func isNameByte(b byte) bool {
	return b == '_' || b == '.' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
