// Package backendtest provides an in-memory backend whose answers are keyed by the
// identifier under the queried offset.
package backendtest

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/walteh/twoslash/pkg/backend"
	"github.com/walteh/twoslash/pkg/position"
	"gitlab.com/tozd/go/errors"
)

var _ backend.Backend = (*Fake)(nil)

// Fake answers hovers from a word table and reports a diagnostic for every occurrence
// of the words in DiagnoseWords.
type Fake struct {
	// Hovers maps an identifier to its hover text.
	Hovers map[string]string
	// FailHover lists identifiers whose hover lookup errors.
	FailHover map[string]bool
	// Completions is returned for every completion request.
	Completions []string
	// FailComplete makes every completion request error.
	FailComplete bool
	// DiagnoseWords maps an identifier to the diagnostic reported at each occurrence.
	DiagnoseWords map[string]backend.Diagnostic
	// DiagnosticsErr fails the diagnostics fetch.
	DiagnosticsErr error
	// CompileErr fails compilation.
	CompileErr error
	// Delay slows hover and completion answers, keyed by offset.
	Delay func(offset int) time.Duration

	compiles atomic.Int32
	mu       sync.Mutex
	texts    []string
	closed   atomic.Int32
}

func (me *Fake) Name() string      { return "fake" }
func (me *Fake) Extension() string { return ".fake" }

func (me *Fake) Compile(ctx context.Context, text string) (backend.Snapshot, error) {
	me.compiles.Add(1)
	me.mu.Lock()
	me.texts = append(me.texts, text)
	me.mu.Unlock()

	if me.CompileErr != nil {
		return nil, &backend.CompileError{Backend: me.Name(), Detail: "compiling", Err: me.CompileErr}
	}
	return &snapshot{fake: me, text: text}, nil
}

// Compiles counts Compile calls.
func (me *Fake) Compiles() int {
	return int(me.compiles.Load())
}

// Closed counts closed snapshots.
func (me *Fake) Closed() int {
	return int(me.closed.Load())
}

// Compiled returns every text passed to Compile.
func (me *Fake) Compiled() []string {
	me.mu.Lock()
	defer me.mu.Unlock()
	return append([]string(nil), me.texts...)
}

type snapshot struct {
	fake *Fake
	text string
}

func (me *snapshot) wait(ctx context.Context, offset int) error {
	if me.fake.Delay == nil {
		return nil
	}
	select {
	case <-time.After(me.fake.Delay(offset)):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (me *snapshot) Hover(ctx context.Context, offset int) (*backend.Hover, error) {
	if err := me.wait(ctx, offset); err != nil {
		return nil, err
	}
	span, ok := WordAt(me.text, offset)
	if !ok {
		return nil, nil
	}
	word := me.text[span.Start:span.End()]
	if me.fake.FailHover[word] {
		return nil, errors.Errorf("hover on %s failed", word)
	}
	text, ok := me.fake.Hovers[word]
	if !ok {
		return nil, nil
	}
	return &backend.Hover{Text: text, Span: span}, nil
}

func (me *snapshot) Complete(ctx context.Context, offset int) (*backend.Completions, error) {
	if err := me.wait(ctx, offset); err != nil {
		return nil, err
	}
	if me.fake.FailComplete {
		return nil, errors.New("completion failed")
	}
	items := make([]backend.CompletionItem, 0, len(me.fake.Completions))
	for _, name := range me.fake.Completions {
		items = append(items, backend.CompletionItem{Name: name})
	}
	return &backend.Completions{Items: items}, nil
}

func (me *snapshot) Diagnostics(ctx context.Context) ([]backend.Diagnostic, error) {
	if me.fake.DiagnosticsErr != nil {
		return nil, me.fake.DiagnosticsErr
	}
	var out []backend.Diagnostic
	for i := 0; i < len(me.text); {
		span, ok := WordAt(me.text, i)
		if !ok {
			i++
			continue
		}
		if d, ok := me.fake.DiagnoseWords[me.text[span.Start:span.End()]]; ok {
			d.Span = span
			out = append(out, d)
		}
		i = span.End()
	}
	return out, nil
}

func (me *snapshot) Close() error {
	me.fake.closed.Add(1)
	return nil
}

// WordAt returns the ASCII identifier containing offset.
func WordAt(text string, offset int) (position.Span, bool) {
	if offset < 0 || offset >= len(text) || !isWord(text[offset]) {
		return position.Span{}, false
	}
	start, end := offset, offset
	for start > 0 && isWord(text[start-1]) {
		start--
	}
	for end < len(text) && isWord(text[end]) {
		end++
	}
	if strings.IndexByte("0123456789", text[start]) >= 0 {
		return position.Span{}, false
	}
	return position.NewSpan(start, end), true
}

func isWord(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
