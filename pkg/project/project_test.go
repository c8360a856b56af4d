package project_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/twoslash/pkg/project"
)

func TestScaffold(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()

	p, err := project.Scaffold(ctx, fs, "/work", map[string]string{
		"go.mod":         "module snippet\n",
		"cfg/extra.toml": "x = 1\n",
	})
	require.NoError(t, err)
	assert.Equal(t, "/work", p.Root())

	content, err := afero.ReadFile(fs, "/work/go.mod")
	require.NoError(t, err)
	assert.Equal(t, "module snippet\n", string(content))

	ok, err := afero.Exists(fs, filepath.Join("/work", "cfg", "extra.toml"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, p.Close())
	ok, err = afero.DirExists(fs, "/work")
	require.NoError(t, err)
	assert.True(t, ok, "a caller supplied root is kept")
}

func TestUnits(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()

	p, err := project.Scaffold(ctx, fs, "", nil)
	require.NoError(t, err)

	a, err := p.NewUnit(ctx, "main.go", "package a")
	require.NoError(t, err)
	b, err := p.NewUnit(ctx, "main.go", "package b")
	require.NoError(t, err)

	assert.NotEqual(t, a.Dir, b.Dir)
	assert.Equal(t, p.Root(), filepath.Dir(a.Dir))

	content, err := afero.ReadFile(fs, a.Path)
	require.NoError(t, err)
	assert.Equal(t, "package a", string(content))

	require.NoError(t, a.Remove())
	ok, err := afero.Exists(fs, a.Path)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = afero.Exists(fs, b.Path)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, p.Close())
	ok, err = afero.DirExists(fs, p.Root())
	require.NoError(t, err)
	assert.False(t, ok)
}
