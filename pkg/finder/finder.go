// Package finder resolves the files, directories and glob patterns given on the command
// line into annotated source files.
package finder

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

var ErrNoMatch = errors.Base("pattern matched no files")

// FileInfo is one found source file.
type FileInfo struct {
	Path    string
	Content []byte
}

type Options struct {
	// Extensions limit the files collected from directories. Explicit file arguments
	// are always kept.
	Extensions []string
	// Exclude drops every path matching one of these doublestar patterns.
	Exclude []string
}

type Finder struct {
	fs   afero.Fs
	opts Options
}

func New(fs afero.Fs, opts Options) *Finder {
	return &Finder{fs: fs, opts: opts}
}

// Find expands args and reads every matching file once, sorted by path.
func (me *Finder) Find(ctx context.Context, args []string) ([]FileInfo, error) {
	seen := make(map[string]bool)
	var paths []string

	add := func(path string) {
		if !seen[path] && !me.excluded(path) {
			seen[path] = true
			paths = append(paths, path)
		}
	}

	for _, arg := range args {
		found, err := me.expand(arg)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, errors.Errorf("%w: %s", ErrNoMatch, arg)
		}
		for _, path := range found {
			add(path)
		}
	}

	sort.Strings(paths)

	files := make([]FileInfo, 0, len(paths))
	for _, path := range paths {
		content, err := afero.ReadFile(me.fs, path)
		if err != nil {
			return nil, errors.Errorf("reading %s: %w", path, err)
		}
		files = append(files, FileInfo{Path: path, Content: content})
	}

	zerolog.Ctx(ctx).Debug().Strs("args", args).Int("files", len(files)).Msg("found sources")

	return files, nil
}

func (me *Finder) expand(arg string) ([]string, error) {
	info, err := me.fs.Stat(arg)
	switch {
	case err == nil && info.IsDir():
		return me.walk(arg)
	case err == nil:
		return []string{arg}, nil
	case !os.IsNotExist(err):
		return nil, errors.Errorf("checking %s: %w", arg, err)
	}

	return me.glob(arg)
}

func (me *Finder) walk(dir string) ([]string, error) {
	var out []string
	err := afero.Walk(me.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != dir && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if me.wanted(path) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("walking %s: %w", dir, err)
	}
	return out, nil
}

func (me *Finder) glob(pattern string) ([]string, error) {
	base, rest := doublestar.SplitPattern(filepath.ToSlash(pattern))
	if !filepath.IsAbs(base) {
		abs, err := filepath.Abs(base)
		if err != nil {
			return nil, errors.Errorf("resolving %s: %w", base, err)
		}
		base = abs
	}

	fsys := afero.NewIOFS(afero.NewBasePathFs(me.fs, base))
	matches, err := doublestar.Glob(fsys, rest, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.Errorf("globbing %s: %w", pattern, err)
	}

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, filepath.Join(base, filepath.FromSlash(m)))
	}
	return out, nil
}

func (me *Finder) wanted(path string) bool {
	if len(me.opts.Extensions) == 0 {
		return true
	}
	for _, ext := range me.opts.Extensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func (me *Finder) excluded(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, pattern := range me.opts.Exclude {
		if ok, _ := doublestar.PathMatch(pattern, path); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, filepath.Base(slashed)); ok {
			return true
		}
	}
	return false
}
