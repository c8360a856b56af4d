package hover_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/twoslash/pkg/backend"
	"github.com/walteh/twoslash/pkg/backend/backendtest"
	"github.com/walteh/twoslash/pkg/cut"
	"github.com/walteh/twoslash/pkg/hover"
	"github.com/walteh/twoslash/pkg/position"
)

func TestQuery(t *testing.T) {
	ctx := context.Background()
	fake := &backendtest.Fake{Hovers: map[string]string{"x": "let x: i32"}}
	snap, err := fake.Compile(ctx, "let x = 1;")
	require.NoError(t, err)

	info, err := hover.Query(ctx, snap, 4)
	require.NoError(t, err)
	require.NotNil(t, info.Text)
	assert.Equal(t, "let x: i32", *info.Text)
	assert.Equal(t, position.Span{Start: 4, Length: 1}, info.Span)

	info, err = hover.Query(ctx, snap, 3)
	require.NoError(t, err)
	assert.Nil(t, info.Text, "whitespace has no hover")
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	code := "fn add(a: i32) -> i32 {\n    a // a comment\n}"
	fake := &backendtest.Fake{Hovers: map[string]string{
		"add": "fn add(a: i32) -> i32",
		"a":   "a: i32",
		"i32": "i32",
	}}
	snap, err := fake.Compile(ctx, code)
	require.NoError(t, err)

	region, err := cut.New(code, -1)
	require.NoError(t, err)

	infos, err := hover.Sweep(ctx, snap, region, 4)
	require.NoError(t, err)

	var targets []string
	for _, info := range infos {
		targets = append(targets, info.TargetString)
		assert.Equal(t, info.TargetString, code[info.Start:info.Start+info.Length])
	}
	assert.Equal(t, []string{"add", "a", "i32", "i32", "a"}, targets, "comment words are not swept")

	last := infos[len(infos)-1]
	assert.Equal(t, hover.StaticQuickInfo{
		TargetString: "a",
		Text:         "a: i32",
		Start:        strings.Index(code, "    a") + 4,
		Length:       1,
		Line:         1,
		Character:    4,
	}, last)
}

func TestSweepHonorsCut(t *testing.T) {
	ctx := context.Background()
	code := "struct Config {}\nfn example() {\n    let cfg = Config {};\n}"
	fake := &backendtest.Fake{Hovers: map[string]string{
		"Config":  "struct Config",
		"example": "fn example()",
		"cfg":     "let cfg: Config",
	}}
	snap, err := fake.Compile(ctx, code)
	require.NoError(t, err)

	region, err := cut.New(code, 1)
	require.NoError(t, err)

	infos, err := hover.Sweep(ctx, snap, region, 0)
	require.NoError(t, err)

	require.Len(t, infos, 3)
	assert.Equal(t, "example", infos[0].TargetString)
	assert.Equal(t, 0, infos[0].Line)
	assert.Equal(t, "cfg", infos[1].TargetString)
	assert.Equal(t, "Config", infos[2].TargetString)
	assert.Equal(t, "struct Config", infos[2].Text, "usage below the cut still resolves")
	assert.Equal(t, 1, infos[2].Line)
	for _, info := range infos {
		assert.Equal(t, info.TargetString, region.Display[info.Start:info.Start+info.Length])
	}
}

func TestSweepSkipsFailedHovers(t *testing.T) {
	ctx := context.Background()
	code := "good bad good"
	fake := &backendtest.Fake{
		Hovers:    map[string]string{"good": "good thing", "bad": "bad thing"},
		FailHover: map[string]bool{"bad": true},
	}
	snap, err := fake.Compile(ctx, code)
	require.NoError(t, err)

	region, err := cut.New(code, -1)
	require.NoError(t, err)

	infos, err := hover.Sweep(ctx, snap, region, 1)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, 0, infos[0].Start)
	assert.Equal(t, 9, infos[1].Start)
}

// wideSnapshot answers the hover of "foo" with the range of the whole selector.
type wideSnapshot struct {
	backend.Snapshot
}

func (wideSnapshot) Tokens(ctx context.Context) ([]position.Span, error) {
	return []position.Span{{Start: 0, Length: 3}, {Start: 4, Length: 3}, {Start: 10, Length: 3}}, nil
}

func (wideSnapshot) Hover(ctx context.Context, offset int) (*backend.Hover, error) {
	switch {
	case offset < 3:
		return &backend.Hover{Text: "foo.bar", Span: position.Span{Start: 0, Length: 7}}, nil
	case offset < 7:
		return &backend.Hover{Text: "bar", Span: position.Span{Start: 4, Length: 3}}, nil
	default:
		return &backend.Hover{Text: "baz", Span: position.Span{Start: 10, Length: 3}}, nil
	}
}

func TestSweepDropsOverlappingSpans(t *testing.T) {
	code := "foo.bar + baz"
	region, err := cut.New(code, -1)
	require.NoError(t, err)

	infos, err := hover.Sweep(context.Background(), wideSnapshot{}, region, 1)
	require.NoError(t, err)

	var targets []string
	for _, info := range infos {
		targets = append(targets, info.TargetString)
	}
	assert.Equal(t, []string{"foo.bar", "baz"}, targets)
}

func TestIdentifierSpans(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "plain", text: "foo.bar()", want: []string{"foo", "bar"}},
		{name: "strings skipped", text: `let s = "hello world";`, want: []string{"let", "s"}},
		{name: "raw strings skipped", text: "x := `a\nb` + y", want: []string{"x", "y"}},
		{name: "numbers skipped", text: "v := 0x1f + 1e9", want: []string{"v"}},
		{name: "char literal skipped", text: "c = 'a'", want: []string{"c"}},
		{name: "lifetime kept", text: "&'static str", want: []string{"static", "str"}},
		{name: "unicode identifiers", text: "größe := 1", want: []string{"größe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, span := range hover.IdentifierSpans(tt.text, 0) {
				got = append(got, tt.text[span.Start:span.End()])
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
