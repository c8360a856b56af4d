package lspclient

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/twoslash/pkg/backend"
	"github.com/walteh/twoslash/pkg/position"
	"github.com/walteh/twoslash/pkg/project"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"
)

type snapshot struct {
	b         *Backend
	unit      *project.Unit
	uri       string
	text      string
	index     *position.LineIndex
	published <-chan struct{}
}

func newSnapshot(b *Backend, unit *project.Unit, uri, text string, published <-chan struct{}) *snapshot {
	return &snapshot{
		b:         b,
		unit:      unit,
		uri:       uri,
		text:      text,
		index:     position.NewLineIndex(text),
		published: published,
	}
}

func (me *snapshot) position(offset int) (Position, error) {
	line, char, err := me.index.UTF16Place(offset)
	if err != nil {
		return Position{}, err
	}
	return Position{Line: line, Character: char}, nil
}

func (me *snapshot) span(r Range) (position.Span, error) {
	start, err := me.index.OffsetFromUTF16(r.Start.Line, r.Start.Character)
	if err != nil {
		return position.Span{}, err
	}
	end, err := me.index.OffsetFromUTF16(r.End.Line, r.End.Character)
	if err != nil {
		return position.Span{}, err
	}
	if end < start {
		end = start
	}
	return position.NewSpan(start, end), nil
}

func (me *snapshot) Hover(ctx context.Context, offset int) (*backend.Hover, error) {
	pos, err := me.position(offset)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	err = me.b.client.CallResult(ctx, "textDocument/hover", &TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: me.uri},
		Position:     pos,
	}, &raw)
	if err != nil {
		return nil, errors.Errorf("textDocument/hover: %w", err)
	}
	if isNull(raw) {
		return nil, nil
	}

	var result HoverResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.Errorf("decoding hover: %w", err)
	}

	text := result.Text()
	if text == "" {
		return nil, nil
	}

	h := &backend.Hover{Text: text, Span: position.Span{Start: offset}}
	if result.Range != nil {
		if h.Span, err = me.span(*result.Range); err != nil {
			return nil, errors.Errorf("hover range: %w", err)
		}
	}
	return h, nil
}

func (me *snapshot) Complete(ctx context.Context, offset int) (*backend.Completions, error) {
	cursor := offset + 1
	if cursor > len(me.text) {
		cursor = len(me.text)
	}
	pos, err := me.position(cursor)
	if err != nil {
		return nil, err
	}

	cc := &CompletionContext{TriggerKind: completionTriggerInvoked}
	if offset >= 0 && offset < len(me.text) && me.text[offset] == '.' {
		cc = &CompletionContext{TriggerKind: completionTriggerCharacter, TriggerCharacter: "."}
	}

	var raw json.RawMessage
	err = me.b.client.CallResult(ctx, "textDocument/completion", &CompletionParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: me.uri},
			Position:     pos,
		},
		Context: cc,
	}, &raw)
	if err != nil {
		return nil, errors.Errorf("textDocument/completion: %w", err)
	}

	items, err := decodeCompletions(raw)
	if err != nil {
		return nil, errors.Errorf("decoding completions: %w", err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].sortKey() < items[j].sortKey()
	})

	out := &backend.Completions{Items: make([]backend.CompletionItem, 0, len(items))}
	for _, item := range items {
		out.Items = append(out.Items, backend.CompletionItem{Name: item.Label, Kind: completionKinds[item.Kind]})
	}

	// the edit range of the first item is the token being completed
	for _, item := range items {
		if item.TextEdit == nil {
			continue
		}
		span, err := me.span(item.TextEdit.Range)
		if err != nil {
			break
		}
		out.Span = &span
		out.Prefix = me.text[span.Start:span.End()]
		break
	}

	return out, nil
}

func (me *snapshot) Diagnostics(ctx context.Context) ([]backend.Diagnostic, error) {
	var diags []Diagnostic

	if me.b.caps.PullsDiagnostics() {
		var report DocumentDiagnosticReport
		err := me.b.client.CallResult(ctx, "textDocument/diagnostic", &DocumentDiagnosticParams{
			TextDocument: TextDocumentIdentifier{URI: me.uri},
		}, &report)
		if err != nil {
			return nil, errors.Errorf("textDocument/diagnostic: %w", err)
		}
		diags = report.Items
	} else {
		got, ok, err := me.b.store.wait(ctx, me.uri, me.published, me.b.settings.DiagnosticsWait)
		if err != nil {
			return nil, errors.Errorf("waiting for diagnostics: %w", err)
		}
		if !ok {
			zerolog.Ctx(ctx).Warn().Str("uri", me.uri).Dur("waited", me.b.settings.DiagnosticsWait).Msg("no diagnostics published")
		}
		diags = got
	}

	out := make([]backend.Diagnostic, 0, len(diags))
	for _, d := range diags {
		span, err := me.span(d.Range)
		if err != nil {
			return nil, errors.Errorf("diagnostic range: %w", err)
		}
		code, id := decodeCode(d.Code)
		if id == "" {
			id = d.Source
		}
		out = append(out, backend.Diagnostic{
			Message:  d.Message,
			ID:       id,
			Severity: severityOf(d.Severity),
			Code:     code,
			Span:     span,
		})
	}
	return out, nil
}

func (me *snapshot) Close() error {
	ctx := context.Background()
	err := me.b.client.Notify(ctx, "textDocument/didClose", &DidCloseTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: me.uri},
	})
	if err != nil {
		err = errors.Errorf("closing document: %w", err)
	}
	me.b.store.forget(me.uri)
	return multierr.Append(err, me.unit.Remove())
}

func severityOf(s int) backend.Severity {
	switch s {
	case 2:
		return backend.SeverityWarning
	case 3:
		return backend.SeverityMessage
	case 4:
		return backend.SeveritySuggestion
	default:
		return backend.SeverityError
	}
}

// decodeCode splits an LSP diagnostic code, which is either a number or a string.
// String codes are kept as the id with a zero numeric code.
func decodeCode(raw json.RawMessage) (int, string) {
	if isNull(raw) {
		return 0, ""
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, strconv.Itoa(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return 0, s
	}
	return 0, ""
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
