// Package batch runs many documents through one processor, caching results by content.
package batch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"github.com/walteh/twoslash/pkg/twoslash"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheSize   = 128
	DefaultConcurrency = 4
)

type Document struct {
	Name   string
	Source string
}

// Outcome is the result of one document. Exactly one of Result and Err is set.
type Outcome struct {
	Name   string
	Result *twoslash.Result
	Err    error
	// Cached is set when the result came from the cache or another in-flight run.
	Cached bool
}

type Options struct {
	// CacheSize bounds the results kept between runs. Negative disables the cache.
	CacheSize int
	// Concurrency bounds the documents processed at once.
	Concurrency int
}

type Runner struct {
	proc   *twoslash.Processor
	cache  *lru.Cache[string, *twoslash.Result]
	flight singleflight.Group
	limit  int
}

func New(proc *twoslash.Processor, opts Options) (*Runner, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.CacheSize == 0 {
		opts.CacheSize = DefaultCacheSize
	}

	me := &Runner{proc: proc, limit: opts.Concurrency}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, *twoslash.Result](opts.CacheSize)
		if err != nil {
			return nil, errors.Errorf("creating result cache: %w", err)
		}
		me.cache = cache
	}
	return me, nil
}

// Key identifies a source for a backend.
func Key(backendName, source string) string {
	sum := sha256.Sum256([]byte(backendName + "\x00" + source))
	return hex.EncodeToString(sum[:])
}

// Process handles one source, answering from the cache when the same source was
// processed before. Concurrent calls for the same source share one run.
func (me *Runner) Process(ctx context.Context, source string) (*twoslash.Result, bool, error) {
	key := Key(me.proc.Backend().Name(), source)

	if me.cache != nil {
		if res, ok := me.cache.Get(key); ok {
			return res, true, nil
		}
	}

	v, err, shared := me.flight.Do(key, func() (any, error) {
		res, err := me.proc.Process(ctx, source)
		if err != nil {
			return nil, err
		}
		if me.cache != nil {
			me.cache.Add(key, res)
		}
		return res, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*twoslash.Result), shared, nil
}

// Run processes every document. A failing document does not stop the others; the
// returned error aggregates every failure and the outcomes keep the input order.
func (me *Runner) Run(ctx context.Context, docs []Document) ([]Outcome, error) {
	outcomes := make([]Outcome, len(docs))

	var (
		mu   sync.Mutex
		merr *multierror.Error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(me.limit)

	for i, doc := range docs {
		g.Go(func() error {
			res, cached, err := me.Process(gctx, doc.Source)
			outcomes[i] = Outcome{Name: doc.Name, Result: res, Err: err, Cached: cached}

			ev := zerolog.Ctx(ctx).Debug().Str("document", doc.Name).Bool("cached", cached)
			if err != nil {
				ev = ev.Err(err)
				mu.Lock()
				merr = multierror.Append(merr, errors.Errorf("%s: %w", doc.Name, err))
				mu.Unlock()
			}
			ev.Msg("processed document")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if merr != nil {
		merr.ErrorFormat = listErrors
	}
	return outcomes, merr.ErrorOrNil()
}

func listErrors(errs []error) string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	s := fmt.Sprintf("%d documents failed", len(errs))
	for _, err := range errs {
		s += "\n\t* " + err.Error()
	}
	return s
}
