package finder_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/twoslash/pkg/finder"
)

func setup(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"/docs/hover.go":             "package a",
		"/docs/cut.go":               "package b",
		"/docs/hover.go.twoslash.go": "generated",
		"/docs/users.proto":          "syntax = \"proto3\";",
		"/docs/notes.md":             "# notes",
		"/docs/nested/deep.go":       "package c",
		"/docs/.hidden/skip.go":      "package d",
	}
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
	return fs
}

func paths(files []finder.FileInfo) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out
}

func TestFind(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		opts finder.Options
		args []string
		want []string
	}{
		{
			name: "directory with extensions",
			opts: finder.Options{Extensions: []string{".go"}, Exclude: []string{"*.twoslash.*"}},
			args: []string{"/docs"},
			want: []string{"/docs/cut.go", "/docs/hover.go", "/docs/nested/deep.go"},
		},
		{
			name: "explicit file ignores extensions",
			opts: finder.Options{Extensions: []string{".go"}},
			args: []string{"/docs/notes.md"},
			want: []string{"/docs/notes.md"},
		},
		{
			name: "recursive glob",
			args: []string{"/docs/**/*.proto", "/docs/**/deep.go"},
			want: []string{"/docs/nested/deep.go", "/docs/users.proto"},
		},
		{
			name: "duplicates collapse",
			args: []string{"/docs/cut.go", "/docs/*.go"},
			opts: finder.Options{Exclude: []string{"**/*.twoslash.go"}},
			want: []string{"/docs/cut.go", "/docs/hover.go"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := finder.New(setup(t), tt.opts).Find(ctx, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, paths(files))
		})
	}
}

func TestFindReadsContent(t *testing.T) {
	files, err := finder.New(setup(t), finder.Options{}).Find(context.Background(), []string{"/docs/cut.go"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "package b", string(files[0].Content))
}

func TestFindNoMatch(t *testing.T) {
	_, err := finder.New(setup(t), finder.Options{}).Find(context.Background(), []string{"/docs/*.rs"})
	require.ErrorIs(t, err, finder.ErrNoMatch)
}
