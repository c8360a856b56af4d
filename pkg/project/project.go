// Package project scaffolds the on-disk workspace a backend compiles snippets in: a
// root holding the manifest files plus one directory per compiled unit.
package project

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// Project is a scaffolded workspace.
type Project struct {
	fs      afero.Fs
	root    string
	created bool
}

// Scaffold prepares root (a fresh temporary directory when root is empty) and writes
// the manifest files into it. Manifest keys are paths relative to root.
func Scaffold(ctx context.Context, fs afero.Fs, root string, manifest map[string]string) (*Project, error) {
	me := &Project{fs: fs, root: root}

	if root == "" {
		dir, err := afero.TempDir(fs, "", "twoslash-")
		if err != nil {
			return nil, errors.Errorf("creating workspace: %w", err)
		}
		me.root = dir
		me.created = true
	} else if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Errorf("creating workspace %s: %w", root, err)
	}

	names := make([]string, 0, len(manifest))
	for name := range manifest {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := me.write(name, manifest[name]); err != nil {
			return nil, err
		}
	}

	zerolog.Ctx(ctx).Debug().Str("root", me.root).Strs("manifest", names).Msg("scaffolded workspace")

	return me, nil
}

func (me *Project) write(rel, content string) error {
	path := filepath.Join(me.root, filepath.FromSlash(rel))
	if err := me.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Errorf("creating directory for %s: %w", rel, err)
	}
	if err := afero.WriteFile(me.fs, path, []byte(content), 0o644); err != nil {
		return errors.Errorf("writing %s: %w", rel, err)
	}
	return nil
}

func (me *Project) Root() string {
	return me.root
}

func (me *Project) Fs() afero.Fs {
	return me.fs
}

// Unit is one compiled snippet inside a project.
type Unit struct {
	ID   string
	Dir  string
	Path string

	fs afero.Fs
}

// NewUnit writes content to a new unit directory under the project root.
func (me *Project) NewUnit(ctx context.Context, fileName, content string) (*Unit, error) {
	id := uuid.NewString()
	rel := filepath.ToSlash(filepath.Join(id, fileName))
	if err := me.write(rel, content); err != nil {
		return nil, err
	}

	unit := &Unit{
		ID:   id,
		Dir:  filepath.Join(me.root, id),
		Path: filepath.Join(me.root, id, fileName),
		fs:   me.fs,
	}

	zerolog.Ctx(ctx).Trace().Str("unit", unit.Path).Msg("wrote unit")

	return unit, nil
}

// Remove deletes the unit directory.
func (me *Unit) Remove() error {
	if err := me.fs.RemoveAll(me.Dir); err != nil && !os.IsNotExist(err) {
		return errors.Errorf("removing unit %s: %w", me.ID, err)
	}
	return nil
}

// Close removes the workspace if Scaffold created it.
func (me *Project) Close() error {
	if !me.created {
		return nil
	}
	if err := me.fs.RemoveAll(me.root); err != nil {
		return errors.Errorf("removing workspace: %w", err)
	}
	return nil
}
