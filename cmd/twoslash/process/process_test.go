package process

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/twoslash/pkg/render"
	"github.com/walteh/twoslash/pkg/session"
	"github.com/walteh/twoslash/pkg/targz"
	"github.com/walteh/twoslash/pkg/twoslash"
)

const goSource = "package main\n\nvar x = 1\n//  ^?\n"

func newHandler(fs afero.Fs, format string) *Handler {
	return &Handler{
		flags:  session.Flags{Backend: "go"},
		format: format,
		fs:     fs,
		env:    func(string) (string, bool) { return "", false },
	}
}

func TestRunPrintsJSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/a.go", []byte(goSource), 0o644))

	var out bytes.Buffer
	require.NoError(t, newHandler(fs, "json").Run(context.Background(), nil, &out, []string{"/src/a.go"}))

	var res twoslash.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.True(t, strings.HasPrefix(res.Code, "package main\n\nvar x = 1"), res.Code)
	assert.NotContains(t, res.Code, "^?")
	require.Len(t, res.Queries, 1)
	require.NotNil(t, res.Queries[0].Text)
	assert.Equal(t, "var x int", *res.Queries[0].Text)
	assert.Equal(t, ".go", res.Extension)
}

func TestRunWritesOutDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/a.go", []byte(goSource), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/src/b.go", []byte("package main\n"), 0o644))

	h := newHandler(fs, "yaml")
	h.outDir = "/out"

	var out bytes.Buffer
	require.NoError(t, h.Run(context.Background(), nil, &out, []string{"/src"}))
	assert.Empty(t, out.String())

	data, err := afero.ReadFile(fs, "/out/a.go.twoslash.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "text: var x int")

	exists, err := afero.Exists(fs, "/out/b.go.twoslash.yaml")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRunStdinText(t *testing.T) {
	var out bytes.Buffer
	err := newHandler(afero.NewMemMapFs(), "text").Run(context.Background(), strings.NewReader(goSource), &out, nil)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "3 | var x = 1")
	assert.Contains(t, out.String(), "^ var x int")
}

func TestRunReportsFailedDocuments(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/bad.go", []byte("//  ^?\npackage main\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/src/good.go", []byte(goSource), 0o644))

	var out bytes.Buffer
	err := newHandler(fs, "json").Run(context.Background(), nil, &out, []string{"/src"})
	require.ErrorContains(t, err, "bad.go")
	assert.Contains(t, out.String(), "var x int", "the good document is still printed")
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "/o/a.go.twoslash.json", OutputPath("/o", "/src", "/src/a.go", render.FormatJSON))
	assert.Equal(t, "/o/stdin.twoslash.msgpack", OutputPath("/o", "", "-", render.FormatMsgpack))
	assert.Equal(t, "/o/a/snippet.go.twoslash.json", OutputPath("/o", ".", "a/snippet.go", render.FormatJSON))
	assert.NotEqual(t,
		OutputPath("out", ".", "a/snippet.go", render.FormatJSON),
		OutputPath("out", ".", "b/snippet.go", render.FormatJSON))
}

func TestCommonDir(t *testing.T) {
	tests := []struct {
		name    string
		sources []string
		want    string
	}{
		{name: "single", sources: []string{"/src/a.go"}, want: "/src"},
		{name: "siblings", sources: []string{"/src/a.go", "/src/b.go"}, want: "/src"},
		{name: "nested", sources: []string{"/src/a.go", "/src/x/b.go"}, want: "/src"},
		{name: "disjoint", sources: []string{"/one/a.go", "/two/a.go"}, want: "/"},
		{name: "relative", sources: []string{"a/snippet.go", "b/snippet.go"}, want: "."},
		{name: "stdin", sources: []string{"-"}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CommonDir(tt.sources))
		})
	}
}

func TestRunKeepsSameNamesApart(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/a/snippet.go", []byte(goSource), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/src/b/snippet.go", []byte("package main\n\nvar y = \"s\"\n//  ^?\n"), 0o644))

	h := newHandler(fs, "json")
	h.outDir = "/out"
	require.NoError(t, h.Run(context.Background(), nil, &bytes.Buffer{}, []string{"/src"}))

	a, err := afero.ReadFile(fs, "/out/a/snippet.go.twoslash.json")
	require.NoError(t, err)
	assert.Contains(t, string(a), "var x int")

	b, err := afero.ReadFile(fs, "/out/b/snippet.go.twoslash.json")
	require.NoError(t, err)
	assert.Contains(t, string(b), "var y string")

	h = newHandler(fs, "json")
	h.archive = "/all.tgz"
	require.NoError(t, h.Run(context.Background(), nil, &bytes.Buffer{}, []string{"/src"}))

	f, err := fs.Open("/all.tgz")
	require.NoError(t, err)
	defer f.Close()
	bundle, err := targz.Load(f, targz.LoadOptions{})
	require.NoError(t, err)
	for _, name := range []string{"/a/snippet.go.twoslash.json", "/b/snippet.go.twoslash.json"} {
		exists, err := afero.Exists(bundle, name)
		require.NoError(t, err)
		assert.True(t, exists, name)
	}
}

func TestRunWritesArchive(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/a.go", []byte(goSource), 0o644))

	h := newHandler(fs, "json")
	h.archive = "/results.tgz"

	var out bytes.Buffer
	require.NoError(t, h.Run(context.Background(), nil, &out, []string{"/src"}))
	assert.Empty(t, out.String())

	f, err := fs.Open("/results.tgz")
	require.NoError(t, err)
	defer f.Close()

	bundle, err := targz.Load(f, targz.LoadOptions{})
	require.NoError(t, err)

	data, err := afero.ReadFile(bundle, "/a.go.twoslash.json")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"text": "var x int"`)
}
