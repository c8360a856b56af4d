// Package directive recognizes twoslash marker comments and strips them from source.
package directive

import (
	"regexp"
)

// Kind is the type of a recognized marker line.
type Kind int

const (
	// Query asks for hover information at the caret.
	Query Kind = iota
	// Completions asks for completion candidates at the cursor left by the caret.
	Completions
	// NoErrors suppresses diagnostics in the final result.
	NoErrors
	// Cut hides every line above it from the displayed code.
	Cut
)

func (k Kind) String() string {
	switch k {
	case Query:
		return "query"
	case Completions:
		return "completions"
	case NoErrors:
		return "noErrors"
	case Cut:
		return "cut"
	default:
		return "unknown"
	}
}

// IsQuery reports whether the kind produces an entry in the result's query list.
func (k Kind) IsQuery() bool {
	return k == Query || k == Completions
}

type recognizer struct {
	kind Kind
	re   *regexp.Regexp
	// column maps the caret's byte index to the column the query targets. Nil for
	// pragmas, which carry no position.
	column func(caret int) int
}

// Order matters: the first recognizer that matches a line wins.
var recognizers = []recognizer{
	{
		kind: NoErrors,
		re:   regexp.MustCompile(`^\s*//\s*@noErrors\s*$`),
	},
	{
		kind: Cut,
		re:   regexp.MustCompile(`^\s*//\s*---cut(?:-before)?---\s*$`),
	},
	{
		kind:   Query,
		re:     regexp.MustCompile(`^\s*//\s*(?P<caret>\^)\?`),
		column: func(caret int) int { return caret },
	},
	{
		// the caret sits one column right of the last typed character
		kind:   Completions,
		re:     regexp.MustCompile(`^\s*//\s*(?P<caret>\^)\|`),
		column: func(caret int) int { return caret - 1 },
	},
}

// Directive is one recognized marker line.
type Directive struct {
	Kind Kind
	// Line is the zero-based index of the marker in the raw source.
	Line int
	// Column is the adjusted caret column, zero for pragmas.
	Column int
}

// Recognize classifies a single raw line. Lines that merely resemble a marker are not
// directives.
func Recognize(line string, index int) (Directive, bool) {
	for _, r := range recognizers {
		match := r.re.FindStringSubmatchIndex(line)
		if match == nil {
			continue
		}
		d := Directive{Kind: r.kind, Line: index}
		if r.column != nil {
			caret := match[2*r.re.SubexpIndex("caret")]
			d.Column = r.column(caret)
		}
		return d, true
	}
	return Directive{}, false
}
