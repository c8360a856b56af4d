// Package twoslash turns annotated source into a result document: it strips the
// directive lines, compiles the clean code once, answers every marker against that
// snapshot and assembles the answers in source order.
package twoslash

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/walteh/twoslash/pkg/backend"
	"github.com/walteh/twoslash/pkg/cut"
	"github.com/walteh/twoslash/pkg/diagnostic"
	"github.com/walteh/twoslash/pkg/directive"
	"github.com/walteh/twoslash/pkg/hover"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 8

type Options struct {
	// Extension overrides the backend's file extension in results.
	Extension string
	// PlaygroundURL is attached to every result.
	PlaygroundURL string
	// Concurrency bounds the backend lookups in flight for one document.
	Concurrency int
}

type Processor struct {
	backend backend.Backend
	opts    Options
}

func NewProcessor(b backend.Backend, opts Options) *Processor {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Extension == "" {
		opts.Extension = b.Extension()
	}
	return &Processor{backend: b, opts: opts}
}

func (me *Processor) Backend() backend.Backend {
	return me.backend
}

// Extension is the extension stamped on results.
func (me *Processor) Extension() string {
	return me.opts.Extension
}

// Process runs the whole pipeline for one raw source.
func (me *Processor) Process(ctx context.Context, raw string) (res *Result, err error) {
	logger := zerolog.Ctx(ctx).With().Str("backend", me.backend.Name()).Logger()
	ctx = logger.WithContext(ctx)

	scanned, err := directive.Scan(raw)
	if err != nil {
		return nil, errors.Errorf("scanning directives: %w", err)
	}

	region, err := cut.New(scanned.Code, scanned.CutLine)
	if err != nil {
		return nil, errors.Errorf("cutting code: %w", err)
	}

	targets, err := resolve(scanned.Markers, region)
	if err != nil {
		return nil, err
	}

	logger.Debug().
		Int("markers", len(targets)).
		Int("removed", scanned.Removed).
		Bool("no_errors", scanned.NoErrors).
		Bool("cut", region.Cut()).
		Msg("scanned source")

	snap, err := me.backend.Compile(ctx, region.Compiled)
	if err != nil {
		return nil, errors.Errorf("compiling: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(snap))

	var (
		queries []Query
		infos   []hover.StaticQuickInfo
		diags   []diagnostic.Diagnostic
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		queries, err = dispatch(gctx, snap, region, targets, me.opts.Concurrency)
		return err
	})
	g.Go(func() error {
		var err error
		infos, err = hover.Sweep(gctx, snap, region, me.opts.Concurrency)
		return err
	})
	g.Go(func() error {
		var err error
		diags, err = diagnostic.Fetch(gctx, snap, region, scanned.NoErrors)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Result{
		Code:             region.Display,
		Extension:        me.opts.Extension,
		Highlights:       []Highlight{},
		StaticQuickInfos: infos,
		Queries:          queries,
		Tags:             []Tag{},
		Errors:           diags,
		PlaygroundURL:    me.opts.PlaygroundURL,
	}, nil
}

// target is a marker resolved to a compiled offset.
type target struct {
	marker directive.Marker
	offset int
}

func resolve(markers []directive.Marker, region *cut.Region) ([]target, error) {
	idx := region.CompiledIndex()
	out := make([]target, 0, len(markers))
	for _, m := range markers {
		if _, ok := region.PlaceToDisplay(m.Target); !ok {
			return nil, errors.Errorf("%w: %s marker on line %d points above the cut", directive.ErrMalformedDirective, m.Kind, m.RawLine+1)
		}
		offset, err := idx.Offset(m.Target)
		if err != nil {
			return nil, errors.Errorf("resolving %s marker on line %d: %w", m.Kind, m.RawLine+1, err)
		}
		out = append(out, target{marker: m, offset: offset})
	}
	return out, nil
}
