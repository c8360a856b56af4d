// Package diagnostic maps backend diagnostics onto the displayed code.
package diagnostic

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
	"github.com/walteh/twoslash/pkg/backend"
	"github.com/walteh/twoslash/pkg/cut"
	"gitlab.com/tozd/go/errors"
)

// Diagnostic is one compiler message in display coordinates.
type Diagnostic struct {
	RenderedMessage string           `json:"renderedMessage" yaml:"renderedMessage" msgpack:"renderedMessage"`
	ID              string           `json:"id" yaml:"id" msgpack:"id"`
	Category        backend.Severity `json:"category" yaml:"category" msgpack:"category"`
	Code            int              `json:"code" yaml:"code" msgpack:"code"`
	Start           int              `json:"start" yaml:"start" msgpack:"start"`
	Length          int              `json:"length" yaml:"length" msgpack:"length"`
	Line            int              `json:"line" yaml:"line" msgpack:"line"`
	Character       int              `json:"character" yaml:"character" msgpack:"character"`
}

// Fetch collects the diagnostics of snap and assembles them for region. A failed fetch
// is returned as is; diagnostics are not optional.
func Fetch(ctx context.Context, snap backend.Snapshot, region *cut.Region, suppress bool) ([]Diagnostic, error) {
	if suppress {
		zerolog.Ctx(ctx).Debug().Msg("diagnostics suppressed")
		return []Diagnostic{}, nil
	}

	diags, err := snap.Diagnostics(ctx)
	if err != nil {
		return nil, errors.Errorf("fetching diagnostics: %w", err)
	}

	return Assemble(diags, region, suppress)
}

// Assemble shifts diags into display coordinates, drops the ones located above the
// cut and orders the rest by position. The result is empty, never nil, when suppress
// is set.
func Assemble(diags []backend.Diagnostic, region *cut.Region, suppress bool) ([]Diagnostic, error) {
	out := make([]Diagnostic, 0, len(diags))
	if suppress {
		return out, nil
	}

	for _, d := range diags {
		span, ok := region.SpanToDisplay(d.Span)
		if !ok {
			continue
		}
		place, err := region.DisplayPlace(span.Start)
		if err != nil {
			return nil, errors.Errorf("placing diagnostic %q: %w", d.Message, err)
		}

		category := d.Severity
		if category == "" {
			category = backend.SeverityError
		}

		out = append(out, Diagnostic{
			RenderedMessage: d.Message,
			ID:              d.ID,
			Category:        category,
			Code:            d.Code,
			Start:           span.Start,
			Length:          span.Length,
			Line:            place.Line,
			Character:       place.Character,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})

	return out, nil
}

// Count tallies diagnostics per category.
func Count(diags []Diagnostic) map[backend.Severity]int {
	counts := make(map[backend.Severity]int, 4)
	for _, d := range diags {
		counts[d.Category]++
	}
	return counts
}
