package twoslash

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/walteh/twoslash/pkg/backend"
	"github.com/walteh/twoslash/pkg/completion"
	"github.com/walteh/twoslash/pkg/cut"
	"github.com/walteh/twoslash/pkg/directive"
	"github.com/walteh/twoslash/pkg/hover"
	"github.com/walteh/twoslash/pkg/position"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// dispatch answers every target concurrently and returns the queries in target order.
// Failed lookups are logged and left without an answer.
func dispatch(ctx context.Context, snap backend.Snapshot, region *cut.Region, targets []target, limit int) ([]Query, error) {
	queries := make([]Query, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, t := range targets {
		g.Go(func() error {
			var (
				q   Query
				err error
			)
			switch t.marker.Kind {
			case directive.Query:
				q, err = answerHover(gctx, snap, region, t)
			case directive.Completions:
				q, err = answerCompletions(gctx, snap, region, t)
			default:
				return errors.Errorf("unexpected %s marker", t.marker.Kind)
			}
			if err != nil {
				return err
			}
			queries[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Errorf("dispatching queries: %w", err)
	}

	return queries, nil
}

func baseQuery(region *cut.Region, t target, kind QueryKind) (Query, error) {
	start, ok := region.ToDisplay(t.offset)
	if !ok {
		return Query{}, errors.Errorf("%w: %s marker on line %d is hidden by the cut", directive.ErrMalformedDirective, kind, t.marker.RawLine+1)
	}
	return Query{
		Kind:   kind,
		Line:   t.marker.Line - region.LineShift,
		Offset: t.marker.Target.Character,
		Start:  start,
	}, nil
}

func answerHover(ctx context.Context, snap backend.Snapshot, region *cut.Region, t target) (Query, error) {
	q, err := baseQuery(region, t, KindQuery)
	if err != nil {
		return Query{}, err
	}

	info, err := hover.Query(ctx, snap, t.offset)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int("line", q.Line).Msg("hover query failed")
		return q, nil
	}
	if info.Text == nil {
		return q, nil
	}

	q.Text = info.Text
	if span, ok := region.SpanToDisplay(info.Span); ok && info.Span.Length > 0 {
		q.Start = span.Start
		q.Length = span.Length
	}
	return q, nil
}

func answerCompletions(ctx context.Context, snap backend.Snapshot, region *cut.Region, t target) (Query, error) {
	q, err := baseQuery(region, t, KindCompletions)
	if err != nil {
		return Query{}, err
	}

	res, err := completion.Query(ctx, snap, region.Compiled, t.offset)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int("line", q.Line).Msg("completion query failed")
		return q, nil
	}

	items := res.Items
	prefix := res.Prefix
	q.Completions = &items
	q.CompletionsPrefix = &prefix

	span, ok := region.SpanToDisplay(res.Span)
	if !ok {
		span = position.Span{Start: q.Start}
	}
	place, err := region.DisplayPlace(span.Start)
	if err != nil {
		return Query{}, errors.Errorf("placing completion token: %w", err)
	}
	q.Start = span.Start
	q.Length = span.Length
	q.Offset = place.Character
	return q, nil
}
