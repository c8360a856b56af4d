// Package diff compares results against golden files.
package diff

import (
	"bytes"
	"strings"

	"github.com/kylelemons/godebug/diff"
	"github.com/walteh/twoslash/pkg/render"
	"github.com/walteh/twoslash/pkg/twoslash"
	"gitlab.com/tozd/go/errors"
)

// Text returns a line diff turning got into want, or "" when they are equal.
func Text(want, got string) string {
	d := diff.Diff(got, want)
	if d == "" || want == got {
		return ""
	}
	str := "\n\n"
	str += "to convert ACTUAL ⏩️ EXPECTED:\n\n"
	str += "add:    ➕\n"
	str += "remove: ➖\n"
	str += "\n"
	str += strings.ReplaceAll(strings.ReplaceAll("\n"+d, "\n-", "\n➖"), "\n+", "\n➕")[1:]
	return str
}

// Results diffs the indented json of two results.
func Results(want, got *twoslash.Result) (string, error) {
	var w, g bytes.Buffer
	if err := render.Encode(&w, render.FormatJSON, want); err != nil {
		return "", errors.Errorf("encoding expected result: %w", err)
	}
	if err := render.Encode(&g, render.FormatJSON, got); err != nil {
		return "", errors.Errorf("encoding actual result: %w", err)
	}
	return Text(w.String(), g.String()), nil
}

// Golden compares got against the json golden content, ignoring formatting of the
// golden file.
func Golden(golden []byte, got *twoslash.Result) (string, error) {
	var want twoslash.Result
	if err := render.Decode(bytes.NewReader(golden), render.FormatJSON, &want); err != nil {
		return "", errors.Errorf("reading golden result: %w", err)
	}
	return Results(&want, got)
}
