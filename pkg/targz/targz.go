// Package targz reads bundles of annotated sources from gzipped tarballs and writes
// result bundles back out.
package targz

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

var ErrCollision = errors.Base("duplicate archive entry")

// IsArchive reports whether name looks like a gzipped tarball.
func IsArchive(name string) bool {
	return strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz")
}

// SplitPath splits a file path into components
func SplitPath(path string) []string {
	path = strings.TrimRight(filepath.ToSlash(path), "/")
	if path == "" {
		return nil
	}

	var components []string
	dir := path
	for dir != "." && dir != "/" && dir != "" {
		components = append([]string{filepath.Base(dir)}, components...)
		dir = filepath.Dir(dir)
	}
	return components
}

type LoadOptions struct {
	// StripComponents removes leading path components, like tar --strip-components.
	StripComponents int

	// Filter keeps an entry when it returns true.
	Filter func(header *tar.Header) bool
}

// Load reads the regular files of a gzipped tarball into an in-memory filesystem
// rooted at "/".
func Load(r io.Reader, opts LoadOptions) (afero.Fs, error) {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Errorf("opening gzip stream: %w", err)
	}
	defer gzr.Close()

	fs := afero.NewMemMapFs()
	tr := tar.NewReader(gzr)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Errorf("reading tar: %w", err)
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}

		components := SplitPath(header.Name)
		if len(components) <= opts.StripComponents {
			continue
		}
		if opts.Filter != nil && !opts.Filter(header) {
			continue
		}

		path := "/" + strings.Join(components[opts.StripComponents:], "/")
		if exists, _ := afero.Exists(fs, path); exists {
			return nil, errors.Errorf("%w: %s", ErrCollision, path)
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, errors.Errorf("reading %s: %w", header.Name, err)
		}
		if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Errorf("creating %s: %w", filepath.Dir(path), err)
		}
		if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
			return nil, errors.Errorf("writing %s: %w", path, err)
		}
	}

	return fs, nil
}

// Entry is one file written into a bundle.
type Entry struct {
	Name string
	Data []byte
}

// Write stores entries as a gzipped tarball, sorted by name. Names must be unique.
func Write(w io.Writer, entries []Entry) error {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	gzw := gzip.NewWriter(w)
	tw := tar.NewWriter(gzw)

	modTime := time.Unix(0, 0)
	for i, e := range sorted {
		if i > 0 && sorted[i-1].Name == e.Name {
			return errors.Errorf("%w: %s", ErrCollision, e.Name)
		}
		hdr := &tar.Header{
			Name:     filepath.ToSlash(e.Name),
			Mode:     0o644,
			Size:     int64(len(e.Data)),
			ModTime:  modTime,
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return errors.Errorf("writing header for %s: %w", e.Name, err)
		}
		if _, err := tw.Write(e.Data); err != nil {
			return errors.Errorf("writing %s: %w", e.Name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return errors.Errorf("closing tar: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return errors.Errorf("closing gzip: %w", err)
	}
	return nil
}
