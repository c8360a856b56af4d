package twoslash

import (
	"github.com/walteh/twoslash/pkg/completion"
	"github.com/walteh/twoslash/pkg/diagnostic"
	"github.com/walteh/twoslash/pkg/hover"
)

// Result is the document produced for one annotated source.
type Result struct {
	Code             string                  `json:"code" yaml:"code" msgpack:"code"`
	Extension        string                  `json:"extension" yaml:"extension" msgpack:"extension"`
	Highlights       []Highlight             `json:"highlights" yaml:"highlights" msgpack:"highlights"`
	StaticQuickInfos []hover.StaticQuickInfo `json:"staticQuickInfos" yaml:"staticQuickInfos" msgpack:"staticQuickInfos"`
	Queries          []Query                 `json:"queries" yaml:"queries" msgpack:"queries"`
	Tags             []Tag                   `json:"tags" yaml:"tags" msgpack:"tags"`
	Errors           []diagnostic.Diagnostic `json:"errors" yaml:"errors" msgpack:"errors"`
	PlaygroundURL    string                  `json:"playgroundURL" yaml:"playgroundURL" msgpack:"playgroundURL"`
}

type QueryKind string

const (
	KindQuery       QueryKind = "query"
	KindCompletions QueryKind = "completions"
)

// Query is the answer to one marker. Line is the marker's own line in the displayed
// code and Offset the column it points at. For completions Offset, Start and Length
// describe the token being completed.
type Query struct {
	Kind   QueryKind `json:"kind" yaml:"kind" msgpack:"kind"`
	Line   int       `json:"line" yaml:"line" msgpack:"line"`
	Offset int       `json:"offset" yaml:"offset" msgpack:"offset"`
	// Text is nil when the backend had no hover at the position.
	Text   *string `json:"text,omitempty" yaml:"text,omitempty" msgpack:"text,omitempty"`
	Start  int     `json:"start" yaml:"start" msgpack:"start"`
	Length int     `json:"length" yaml:"length" msgpack:"length"`
	// Completions is nil for hover queries and for failed completion lookups.
	Completions       *[]completion.Entry `json:"completions,omitempty" yaml:"completions,omitempty" msgpack:"completions,omitempty"`
	CompletionsPrefix *string             `json:"completionsPrefix,omitempty" yaml:"completionsPrefix,omitempty" msgpack:"completionsPrefix,omitempty"`
}

// Highlight marks a span of the displayed code. No directive produces one yet.
type Highlight struct {
	Kind   string `json:"kind" yaml:"kind" msgpack:"kind"`
	Offset int    `json:"offset" yaml:"offset" msgpack:"offset"`
	Length int    `json:"length" yaml:"length" msgpack:"length"`
	Text   string `json:"text,omitempty" yaml:"text,omitempty" msgpack:"text,omitempty"`
	Line   int    `json:"line" yaml:"line" msgpack:"line"`
	Start  int    `json:"start" yaml:"start" msgpack:"start"`
}

// Tag is a named annotation attached to a line. No directive produces one yet.
type Tag struct {
	Name       string `json:"name" yaml:"name" msgpack:"name"`
	Line       int    `json:"line" yaml:"line" msgpack:"line"`
	Annotation string `json:"annotation,omitempty" yaml:"annotation,omitempty" msgpack:"annotation,omitempty"`
}
