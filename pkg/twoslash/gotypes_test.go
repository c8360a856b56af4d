package twoslash_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/twoslash/pkg/backend"
	"github.com/walteh/twoslash/pkg/backend/gotypes"
	"github.com/walteh/twoslash/pkg/twoslash"
)

func TestProcessWithGoTypes(t *testing.T) {
	ctx := context.Background()
	b, err := gotypes.New(ctx, backend.Settings{})
	require.NoError(t, err)

	proc := twoslash.NewProcessor(b, twoslash.Options{})

	tests := []struct {
		name     string
		src      string
		code     string
		errorIDs []string
		// hover is the expected prefix of the single query's text, empty for no query.
		hover string
		// removed is the number of directive lines, checked when there is no cut.
		removed int
	}{
		{
			name:     "noErrors hides unused variable",
			src:      "// @noErrors\npackage demo\n\nfunc f() {\n\tx := 1\n}",
			code:     "package demo\n\nfunc f() {\n\tx := 1\n}",
			errorIDs: []string{},
			removed:  1,
		},
		{
			name:     "unused variable reported",
			src:      "package demo\n\nfunc f() {\n\tx := 1\n}",
			code:     "package demo\n\nfunc f() {\n\tx := 1\n}",
			errorIDs: []string{"unused_variable"},
		},
		{
			name:     "hover after cut on type declared above it",
			src:      "package demo\n\ntype Config struct{ Name string }\n// ---cut---\nfunc example() {\n\tcfg := Config{Name: \"x\"}\n\t//     ^?\n\t_ = cfg\n}",
			code:     "func example() {\n\tcfg := Config{Name: \"x\"}\n\t_ = cfg\n}",
			errorIDs: []string{},
			hover:    "type Config struct",
			removed:  -1,
		},
		{
			name:     "hover without cut",
			src:      "package demo\n\nvar total = 3\n//  ^?\n",
			code:     "package demo\n\nvar total = 3\n",
			errorIDs: []string{},
			hover:    "var total",
			removed:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := proc.Process(ctx, tt.src)
			require.NoError(t, err)

			assert.Equal(t, tt.code, res.Code)

			require.NotNil(t, res.Errors)
			ids := []string{}
			for _, e := range res.Errors {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.errorIDs, ids)

			if tt.hover == "" {
				assert.Empty(t, res.Queries)
			} else {
				require.Len(t, res.Queries, 1)
				q := res.Queries[0]
				require.NotNil(t, q.Text)
				assert.True(t, strings.HasPrefix(*q.Text, tt.hover), *q.Text)
				assert.Equal(t, q.Line-1, strings.Count(res.Code[:q.Start], "\n"))
			}

			if tt.removed >= 0 {
				assert.Equal(t, strings.Count(tt.src, "\n")-tt.removed, strings.Count(res.Code, "\n"))
			}

			for _, info := range res.StaticQuickInfos {
				assert.Equal(t, info.TargetString, res.Code[info.Start:info.Start+info.Length])
			}
		})
	}
}
