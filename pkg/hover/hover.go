// Package hover provides functionality for generating hover information.
package hover

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
	"github.com/walteh/twoslash/pkg/backend"
	"github.com/walteh/twoslash/pkg/cut"
	"github.com/walteh/twoslash/pkg/position"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// StaticQuickInfo is the hover datum of one token of the displayed code.
type StaticQuickInfo struct {
	TargetString string `json:"targetString" yaml:"targetString" msgpack:"targetString"`
	Text         string `json:"text" yaml:"text" msgpack:"text"`
	Start        int    `json:"start" yaml:"start" msgpack:"start"`
	Length       int    `json:"length" yaml:"length" msgpack:"length"`
	Line         int    `json:"line" yaml:"line" msgpack:"line"`
	Character    int    `json:"character" yaml:"character" msgpack:"character"`
}

// Info is the answer to one hover query. Text is nil when the backend had nothing to
// say at the position.
type Info struct {
	Text *string
	Span position.Span
}

// Query asks the snapshot for hover information at a compiled offset.
func Query(ctx context.Context, snap backend.Snapshot, offset int) (*Info, error) {
	h, err := snap.Hover(ctx, offset)
	if err != nil {
		return nil, backend.QueryError("hover", offset, err)
	}
	if h == nil || h.Text == "" {
		return &Info{Span: position.Span{Start: offset}}, nil
	}
	text := h.Text
	return &Info{Text: &text, Span: h.Span}, nil
}

// Candidates returns the compiled spans worth hovering in the displayed part of region.
func Candidates(ctx context.Context, snap backend.Snapshot, region *cut.Region) ([]position.Span, error) {
	lister, ok := snap.(backend.TokenLister)
	if !ok {
		return IdentifierSpans(region.Display, region.Shift), nil
	}

	tokens, err := lister.Tokens(ctx)
	if err != nil {
		return nil, errors.Errorf("listing tokens: %w", err)
	}

	visible := make([]position.Span, 0, len(tokens))
	for _, tok := range tokens {
		if region.Visible(tok.Start) {
			visible = append(visible, tok)
		}
	}
	return visible, nil
}

// Sweep hovers every candidate token of the displayed code and returns the answers
// with hover text, sorted by position. An answer whose span overlaps one already kept
// is dropped. Individual hover failures are logged and skipped.
func Sweep(ctx context.Context, snap backend.Snapshot, region *cut.Region, limit int) ([]StaticQuickInfo, error) {
	candidates, err := Candidates(ctx, snap, region)
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().Int("candidates", len(candidates)).Msg("sweeping hover information")

	answers := make([]*Info, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, candidate := range candidates {
		g.Go(func() error {
			info, err := Query(gctx, snap, candidate.Start)
			if err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Int("offset", candidate.Start).Msg("static hover failed")
				return nil
			}
			if info.Span.Length == 0 {
				info.Span = candidate
			}
			answers[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Errorf("sweeping hovers: %w", err)
	}

	var kept []position.Span
	infos := make([]StaticQuickInfo, 0, len(answers))
	for _, info := range answers {
		if info == nil || info.Text == nil || overlapsAny(kept, info.Span) {
			continue
		}
		kept = append(kept, info.Span)

		entry, ok, err := toStatic(region, info)
		if err != nil {
			return nil, err
		}
		if ok {
			infos = append(infos, entry)
		}
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].Start != infos[j].Start {
			return infos[i].Start < infos[j].Start
		}
		return infos[i].Length < infos[j].Length
	})

	return infos, nil
}

func toStatic(region *cut.Region, info *Info) (StaticQuickInfo, bool, error) {
	span, ok := region.SpanToDisplay(info.Span)
	if !ok {
		return StaticQuickInfo{}, false, nil
	}
	place, err := region.DisplayPlace(span.Start)
	if err != nil {
		return StaticQuickInfo{}, false, errors.Errorf("placing hover span %s: %w", span, err)
	}
	return StaticQuickInfo{
		TargetString: span.Text(region.Display),
		Text:         *info.Text,
		Start:        span.Start,
		Length:       span.Length,
		Line:         place.Line,
		Character:    place.Character,
	}, true, nil
}

func overlapsAny(spans []position.Span, span position.Span) bool {
	for _, s := range spans {
		if s.Overlaps(span) {
			return true
		}
	}
	return false
}
