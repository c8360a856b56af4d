// Package backend defines the semantic analysis collaborator the twoslash pipeline
// queries, plus a registry of the implementations the CLI can construct.
package backend

import (
	"context"

	"github.com/walteh/twoslash/pkg/position"
)

// Backend compiles source text into queryable snapshots.
type Backend interface {
	// Name identifies the backend in configuration and logs.
	Name() string
	// Extension is the file extension of the language the backend analyzes.
	Extension() string
	// Compile builds an immutable snapshot of text. A failure to produce any analyzable
	// snapshot is reported as a *CompileError.
	Compile(ctx context.Context, text string) (Snapshot, error)
}

// Snapshot is an immutable compiled unit. Every method is a read and may be called
// concurrently.
type Snapshot interface {
	// Hover returns the hover text and token span at offset, or nil when there is none.
	Hover(ctx context.Context, offset int) (*Hover, error)
	// Complete returns completion candidates for a cursor placed just after the
	// character at offset.
	Complete(ctx context.Context, offset int) (*Completions, error)
	// Diagnostics returns every diagnostic of the unit.
	Diagnostics(ctx context.Context) ([]Diagnostic, error)
	// Close releases whatever the snapshot holds in the backend.
	Close() error
}

// TokenLister is implemented by snapshots that can enumerate the identifier tokens
// worth hovering. Snapshots without it are swept lexically.
type TokenLister interface {
	Tokens(ctx context.Context) ([]position.Span, error)
}

type Hover struct {
	Text string
	Span position.Span
}

type CompletionItem struct {
	Name string
	// Kind is backend specific ("field", "method", "var", ...). Optional.
	Kind string
}

type Completions struct {
	Items []CompletionItem
	// Prefix is the part of the completed token already typed. Empty when the backend
	// does not know, in which case callers derive it from the text.
	Prefix string
	// Span is the token being completed. Nil when unknown.
	Span *position.Span
}

// Severity mirrors the categories of the result document.
type Severity string

const (
	SeverityError      Severity = "Error"
	SeverityWarning    Severity = "Warning"
	SeverityMessage    Severity = "Message"
	SeveritySuggestion Severity = "Suggestion"
)

type Diagnostic struct {
	Message  string
	ID       string
	Severity Severity
	Code     int
	Span     position.Span
}
