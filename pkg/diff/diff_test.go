package diff_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/twoslash/pkg/diagnostic"
	"github.com/walteh/twoslash/pkg/diff"
	"github.com/walteh/twoslash/pkg/render"
	"github.com/walteh/twoslash/pkg/twoslash"
)

func TestText(t *testing.T) {
	assert.Empty(t, diff.Text("a\nb", "a\nb"))

	d := diff.Text("a\nb", "a\nc")
	assert.Contains(t, d, "➖c")
	assert.Contains(t, d, "➕b")
	assert.Contains(t, d, "to convert ACTUAL")
}

func result(code string) *twoslash.Result {
	return &twoslash.Result{
		Code:       code,
		Extension:  ".go",
		Highlights: []twoslash.Highlight{},
		Queries:    []twoslash.Query{},
		Tags:       []twoslash.Tag{},
		Errors:     []diagnostic.Diagnostic{},
	}
}

func TestGolden(t *testing.T) {
	var golden bytes.Buffer
	require.NoError(t, render.Encode(&golden, render.FormatJSON, result("x := 1")))

	d, err := diff.Golden(golden.Bytes(), result("x := 1"))
	require.NoError(t, err)
	assert.Empty(t, d)

	d, err = diff.Golden(golden.Bytes(), result("x := 2"))
	require.NoError(t, err)
	assert.Contains(t, d, `➕  "code": "x := 1",`)
	assert.Contains(t, d, `➖  "code": "x := 2",`)

	_, err = diff.Golden([]byte("{"), result(""))
	require.Error(t, err)
}
