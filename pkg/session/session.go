// Package session wires configuration, a backend and the processor together for the
// twoslash commands.
package session

import (
	"context"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/walteh/twoslash/pkg/backend"
	"github.com/walteh/twoslash/pkg/backend/gotypes"
	"github.com/walteh/twoslash/pkg/backend/lspclient"
	"github.com/walteh/twoslash/pkg/backend/protobuf"
	"github.com/walteh/twoslash/pkg/batch"
	"github.com/walteh/twoslash/pkg/config"
	"github.com/walteh/twoslash/pkg/targz"
	"github.com/walteh/twoslash/pkg/finder"
	"github.com/walteh/twoslash/pkg/twoslash"
	"gitlab.com/tozd/go/errors"
)

// Flags are shared by the commands that process documents. Empty values defer to the
// config file.
type Flags struct {
	Config        string
	Backend       string
	PlaygroundURL string
	Concurrency   int
}

func (me *Flags) Register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&me.Config, "config", "c", "", "config file (hcl, yaml or toml)")
	cmd.Flags().StringVarP(&me.Backend, "backend", "b", "", "backend name")
	cmd.Flags().StringVar(&me.PlaygroundURL, "playground-url", "", "playground url attached to results")
	cmd.Flags().IntVar(&me.Concurrency, "concurrency", 0, "backend lookups in flight per document")
}

// DefaultRegistry knows every backend shipped with twoslash.
func DefaultRegistry() *backend.Registry {
	reg := backend.NewRegistry()
	reg.Register(gotypes.Name, gotypes.New)
	reg.Register(protobuf.Name, protobuf.New)
	reg.Register(lspclient.Name, lspclient.New)
	return reg
}

type Session struct {
	Config    *config.Config
	Backend   backend.Backend
	Processor *twoslash.Processor
	Runner    *batch.Runner
}

// Open loads the configuration rooted at dir, applies flags and starts the backend.
func Open(ctx context.Context, fs afero.Fs, dir string, flags Flags, reg *backend.Registry, env func(string) (string, bool)) (*Session, error) {
	cfg, err := config.Load(fs, dir, flags.Config, env)
	if err != nil {
		return nil, errors.Errorf("loading config: %w", err)
	}

	if flags.Backend != "" {
		cfg.Backend = flags.Backend
	}
	if flags.PlaygroundURL != "" {
		cfg.PlaygroundURL = flags.PlaygroundURL
	}
	if flags.Concurrency > 0 {
		cfg.Concurrency = flags.Concurrency
	}

	settings, err := cfg.Settings()
	if err != nil {
		return nil, err
	}

	b, err := reg.New(ctx, cfg.Backend, settings)
	if err != nil {
		return nil, err
	}

	proc := twoslash.NewProcessor(b, twoslash.Options{
		Extension:     cfg.Extension,
		PlaygroundURL: cfg.PlaygroundURL,
		Concurrency:   cfg.Concurrency,
	})

	runner, err := batch.New(proc, batch.Options{CacheSize: cfg.CacheSize})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("backend", b.Name()).
		Str("extension", proc.Extension()).
		Int("concurrency", cfg.Concurrency).
		Msg("session opened")

	return &Session{Config: cfg, Backend: b, Processor: proc, Runner: runner}, nil
}

// ResultSuffix marks files written by twoslash next to their sources.
const ResultSuffix = ".twoslash"

// Documents resolves args to source documents. No args reads one document from stdin.
// Gzipped tarballs contribute every matching source they bundle.
func (me *Session) Documents(ctx context.Context, fs afero.Fs, args []string, stdin io.Reader) ([]batch.Document, error) {
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, errors.Errorf("reading stdin: %w", err)
		}
		return []batch.Document{{Name: "-", Source: string(data)}}, nil
	}

	var docs []batch.Document
	var paths []string
	for _, arg := range args {
		if !targz.IsArchive(arg) {
			paths = append(paths, arg)
			continue
		}
		bundled, err := me.archiveDocuments(ctx, fs, arg)
		if err != nil {
			return nil, err
		}
		docs = append(docs, bundled...)
	}

	if len(paths) > 0 {
		found, err := me.find(ctx, fs, paths)
		if err != nil {
			return nil, err
		}
		docs = append(found, docs...)
	}
	return docs, nil
}

func (me *Session) find(ctx context.Context, fs afero.Fs, args []string) ([]batch.Document, error) {
	files, err := finder.New(fs, finder.Options{
		Extensions: []string{me.Processor.Extension()},
		Exclude:    []string{"*" + ResultSuffix + ".*"},
	}).Find(ctx, args)
	if err != nil {
		return nil, err
	}

	docs := make([]batch.Document, 0, len(files))
	for _, f := range files {
		docs = append(docs, batch.Document{Name: f.Path, Source: string(f.Content)})
	}
	return docs, nil
}

// archiveDocuments reads every source bundled in a gzipped tarball. Documents are
// named "<archive>/<path inside the archive>".
func (me *Session) archiveDocuments(ctx context.Context, fs afero.Fs, archive string) ([]batch.Document, error) {
	f, err := fs.Open(archive)
	if err != nil {
		return nil, errors.Errorf("opening %s: %w", archive, err)
	}
	defer f.Close()

	bundle, err := targz.Load(f, targz.LoadOptions{})
	if err != nil {
		return nil, errors.Errorf("%s: %w", archive, err)
	}

	docs, err := me.find(ctx, bundle, []string{"/"})
	if err != nil {
		return nil, errors.Errorf("%s: %w", archive, err)
	}
	for i := range docs {
		docs[i].Name = archive + docs[i].Name
	}
	return docs, nil
}

// Close stops backends holding external resources.
func (me *Session) Close() error {
	if c, ok := me.Backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
