// Package completion asks a backend snapshot for completion candidates at a cursor.
package completion

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/walteh/twoslash/pkg/backend"
	"github.com/walteh/twoslash/pkg/position"
)

// Entry is one candidate as it appears in a result document.
type Entry struct {
	Name string `json:"name" yaml:"name" msgpack:"name"`
	Kind string `json:"-" yaml:"-" msgpack:"-"`
}

type Result struct {
	Items []Entry
	// Prefix is the part of the token typed before the cursor.
	Prefix string
	// Span is the token being completed, in compiled coordinates.
	Span position.Span
}

// Query requests candidates for the cursor after the character at offset of text. The
// prefix and token span come from the backend when it knows them and from text
// otherwise.
func Query(ctx context.Context, snap backend.Snapshot, text string, offset int) (*Result, error) {
	c, err := snap.Complete(ctx, offset)
	if err != nil {
		return nil, backend.QueryError("completion", offset, err)
	}

	cc := NewContext(text, offset)
	res := &Result{
		Items:  []Entry{},
		Prefix: cc.Prefix(),
		Span:   cc.Token(),
	}
	if c == nil {
		return res, nil
	}

	if c.Span != nil {
		res.Span = *c.Span
	}
	if c.Prefix != "" {
		res.Prefix = c.Prefix
	}

	seen := make(map[string]struct{}, len(c.Items))
	for _, item := range c.Items {
		if _, dup := seen[item.Name]; dup {
			continue
		}
		seen[item.Name] = struct{}{}
		res.Items = append(res.Items, Entry{Name: item.Name, Kind: item.Kind})
	}

	zerolog.Ctx(ctx).Debug().
		Int("offset", offset).
		Str("prefix", res.Prefix).
		Bool("after_dot", cc.AfterDot()).
		Int("items", len(res.Items)).
		Msg("completion answered")

	return res, nil
}
