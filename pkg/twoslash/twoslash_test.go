package twoslash_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/twoslash/pkg/backend"
	"github.com/walteh/twoslash/pkg/backend/backendtest"
	"github.com/walteh/twoslash/pkg/completion"
	"github.com/walteh/twoslash/pkg/diagnostic"
	"github.com/walteh/twoslash/pkg/directive"
	"github.com/walteh/twoslash/pkg/hover"
	"github.com/walteh/twoslash/pkg/twoslash"
	"gitlab.com/tozd/go/errors"
)

const stackedFixture = `foo.bar()
//   ^?

foo {
    dofoobar
    //  ^?
}

foo.b
//   ^|

foo {
    dofo
    //  ^|
}`

func ptr[T any](v T) *T {
	return &v
}

func TestProcessSingleHover(t *testing.T) {
	ctx := context.Background()
	fake := &backendtest.Fake{Hovers: map[string]string{
		"foo": "let foo",
		"bar": "(method) bar()",
	}}

	res, err := twoslash.NewProcessor(fake, twoslash.Options{PlaygroundURL: "https://play.example"}).
		Process(ctx, "foo.bar()\n//   ^?")
	require.NoError(t, err)

	assert.Equal(t, &twoslash.Result{
		Code:       "foo.bar()",
		Extension:  ".fake",
		Highlights: []twoslash.Highlight{},
		StaticQuickInfos: []hover.StaticQuickInfo{
			{TargetString: "foo", Text: "let foo", Start: 0, Length: 3, Line: 0, Character: 0},
			{TargetString: "bar", Text: "(method) bar()", Start: 4, Length: 3, Line: 0, Character: 4},
		},
		Queries: []twoslash.Query{
			{Kind: twoslash.KindQuery, Line: 1, Offset: 5, Text: ptr("(method) bar()"), Start: 4, Length: 3},
		},
		Tags:          []twoslash.Tag{},
		Errors:        []diagnostic.Diagnostic{},
		PlaygroundURL: "https://play.example",
	}, res)

	q := res.Queries[0]
	assert.Equal(t, "bar", res.Code[q.Start:q.Start+q.Length])
	assert.Equal(t, 1, fake.Compiles())
	assert.Equal(t, 1, fake.Closed())
	assert.Equal(t, []string{"foo.bar()"}, fake.Compiled())
}

func TestProcessStackedQueries(t *testing.T) {
	ctx := context.Background()
	fake := &backendtest.Fake{
		Hovers:      map[string]string{"bar": "bar()", "dofoobar": "let dofoobar"},
		Completions: []string{"bar", "baz"},
	}

	res, err := twoslash.NewProcessor(fake, twoslash.Options{}).Process(ctx, stackedFixture)
	require.NoError(t, err)

	assert.NotContains(t, res.Code, "//")
	assert.Equal(t, len(strings.Split(stackedFixture, "\n"))-4, len(strings.Split(res.Code, "\n")))

	items := []completion.Entry{{Name: "bar"}, {Name: "baz"}}
	assert.Equal(t, []twoslash.Query{
		{Kind: twoslash.KindQuery, Line: 1, Offset: 5, Text: ptr("bar()"), Start: 4, Length: 3},
		{Kind: twoslash.KindQuery, Line: 4, Offset: 8, Text: ptr("let dofoobar"), Start: 21, Length: 8},
		{Kind: twoslash.KindCompletions, Line: 7, Offset: 4, Start: 37, Length: 1, Completions: &items, CompletionsPrefix: ptr("b")},
		{Kind: twoslash.KindCompletions, Line: 10, Offset: 4, Start: 50, Length: 4, Completions: &items, CompletionsPrefix: ptr("dofo")},
	}, res.Queries)

	assert.Equal(t, "dofoobar", res.Code[21:29])
	assert.Equal(t, "dofo", res.Code[50:54])
}

func TestProcessPreservesOrderUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	src := "a b c d e f g h\n" +
		"//^?\n" +
		"a b c d e f g h\n" +
		"//  ^?\n" +
		"a b c d e f g h\n" +
		"//      ^?\n" +
		"a b c d e f g h\n" +
		"//            ^?"

	fake := &backendtest.Fake{
		Hovers: map[string]string{"a": "a", "b": "b", "c": "c", "d": "d", "e": "e", "f": "f", "g": "g", "h": "h"},
		// later markers answer first
		Delay: func(offset int) time.Duration {
			return time.Duration(64-offset) * time.Millisecond
		},
	}

	res, err := twoslash.NewProcessor(fake, twoslash.Options{Concurrency: 4}).Process(ctx, src)
	require.NoError(t, err)

	var got []string
	for _, q := range res.Queries {
		require.NotNil(t, q.Text)
		got = append(got, *q.Text)
	}
	assert.Equal(t, []string{"b", "c", "e", "h"}, got)
	assert.Equal(t, []int{1, 2, 3, 4}, []int{res.Queries[0].Line, res.Queries[1].Line, res.Queries[2].Line, res.Queries[3].Line})
}

func TestProcessNoErrors(t *testing.T) {
	ctx := context.Background()
	fake := &backendtest.Fake{DiagnoseWords: map[string]backend.Diagnostic{
		"unused": {Message: "unused variable", ID: "unused_variables", Severity: backend.SeverityWarning},
	}}
	proc := twoslash.NewProcessor(fake, twoslash.Options{})

	res, err := proc.Process(ctx, "let unused = 1;")
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, diagnostic.Diagnostic{
		RenderedMessage: "unused variable",
		ID:              "unused_variables",
		Category:        backend.SeverityWarning,
		Start:           4,
		Length:          6,
		Line:            0,
		Character:       4,
	}, res.Errors[0])

	res, err = proc.Process(ctx, "// @noErrors\nlet unused = 1;")
	require.NoError(t, err)
	assert.NotNil(t, res.Errors)
	assert.Empty(t, res.Errors)
	assert.Equal(t, "let unused = 1;", res.Code)
}

func TestProcessCut(t *testing.T) {
	ctx := context.Background()
	src := "struct Config {}\n" +
		"// ---cut---\n" +
		"fn example() {\n" +
		"    let cfg = Config {};\n" +
		"    //        ^?\n" +
		"}"

	fake := &backendtest.Fake{
		Hovers: map[string]string{"Config": "struct Config", "cfg": "let cfg: Config"},
		DiagnoseWords: map[string]backend.Diagnostic{
			"Config": {Message: "never constructed", ID: "dead_code", Severity: backend.SeverityWarning},
		},
	}

	res, err := twoslash.NewProcessor(fake, twoslash.Options{}).Process(ctx, src)
	require.NoError(t, err)

	assert.Equal(t, "fn example() {\n    let cfg = Config {};\n}", res.Code)
	assert.Equal(t, []string{"struct Config {}\nfn example() {\n    let cfg = Config {};\n}"}, fake.Compiled())

	require.Len(t, res.Queries, 1)
	assert.Equal(t, twoslash.Query{
		Kind:   twoslash.KindQuery,
		Line:   2,
		Offset: 14,
		Text:   ptr("struct Config"),
		Start:  29,
		Length: 6,
	}, res.Queries[0])

	for _, info := range res.StaticQuickInfos {
		assert.Equal(t, info.TargetString, res.Code[info.Start:info.Start+info.Length])
	}

	require.Len(t, res.Errors, 1)
	assert.Equal(t, 29, res.Errors[0].Start)
	assert.Equal(t, 1, res.Errors[0].Line)
	assert.Equal(t, 14, res.Errors[0].Character)
}

func TestProcessQueryAboveCut(t *testing.T) {
	ctx := context.Background()
	fake := &backendtest.Fake{}

	_, err := twoslash.NewProcessor(fake, twoslash.Options{}).
		Process(ctx, "let a = 1;\n//  ^?\n// ---cut---\nlet b = 2;")
	require.ErrorIs(t, err, directive.ErrMalformedDirective)
	assert.Zero(t, fake.Compiles())
}

func TestProcessMalformed(t *testing.T) {
	ctx := context.Background()
	fake := &backendtest.Fake{}

	_, err := twoslash.NewProcessor(fake, twoslash.Options{}).Process(ctx, "//  ^?\nlet a = 1;")
	require.ErrorIs(t, err, directive.ErrMalformedDirective)
	assert.Zero(t, fake.Compiles())
}

func TestProcessCompileError(t *testing.T) {
	ctx := context.Background()
	fake := &backendtest.Fake{CompileErr: errors.New("manifest missing")}

	_, err := twoslash.NewProcessor(fake, twoslash.Options{}).Process(ctx, "let a = 1;")
	require.ErrorIs(t, err, backend.ErrCompile)

	var ce *backend.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "fake", ce.Backend)
	assert.Zero(t, fake.Closed())
}

func TestProcessDiagnosticsFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	cause := errors.New("server crashed")
	fake := &backendtest.Fake{DiagnosticsErr: cause}

	_, err := twoslash.NewProcessor(fake, twoslash.Options{}).Process(ctx, "let a = 1;")
	require.ErrorIs(t, err, cause)
	assert.Equal(t, 1, fake.Closed())

	res, err := twoslash.NewProcessor(fake, twoslash.Options{}).Process(ctx, "// @noErrors\nlet a = 1;")
	require.NoError(t, err, "suppressed diagnostics are never fetched")
	assert.Empty(t, res.Errors)
}

func TestProcessQueryFailuresAreAbsentAnswers(t *testing.T) {
	ctx := context.Background()
	fake := &backendtest.Fake{
		Hovers:       map[string]string{"x": "let x"},
		FailHover:    map[string]bool{"x": true},
		FailComplete: true,
	}

	res, err := twoslash.NewProcessor(fake, twoslash.Options{}).Process(ctx, "let x = 1;\n//  ^?\nx.y\n// ^|")
	require.NoError(t, err)
	require.Len(t, res.Queries, 2)

	assert.Equal(t, twoslash.Query{Kind: twoslash.KindQuery, Line: 1, Offset: 4, Start: 4}, res.Queries[0])

	assert.Equal(t, twoslash.KindCompletions, res.Queries[1].Kind)
	assert.Nil(t, res.Queries[1].Completions)
	assert.Nil(t, res.Queries[1].CompletionsPrefix)
	assert.Equal(t, 13, res.Queries[1].Start)
	assert.Empty(t, res.StaticQuickInfos)
}

func TestResultJSON(t *testing.T) {
	ctx := context.Background()
	fake := &backendtest.Fake{Completions: []string{}}

	res, err := twoslash.NewProcessor(fake, twoslash.Options{Extension: ".rs", PlaygroundURL: "https://play.rust-lang.org"}).
		Process(ctx, "a.b\n// ^|\nabc\n//^?")
	require.NoError(t, err)

	out, err := json.Marshal(res)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"code": "a.b\nabc",
		"extension": ".rs",
		"highlights": [],
		"staticQuickInfos": [],
		"queries": [
			{"kind": "completions", "line": 1, "offset": 2, "start": 2, "length": 1, "completions": [], "completionsPrefix": "b"},
			{"kind": "query", "line": 2, "offset": 2, "start": 6, "length": 0}
		],
		"tags": [],
		"errors": [],
		"playgroundURL": "https://play.rust-lang.org"
	}`, string(out))
}
