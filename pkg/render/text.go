package render

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/walteh/twoslash/pkg/backend"
	"github.com/walteh/twoslash/pkg/diagnostic"
	"github.com/walteh/twoslash/pkg/twoslash"
	"gitlab.com/tozd/go/errors"
)

type TextOptions struct {
	Color    bool
	TabWidth int
	// Hovers also prints every static quick info below the code.
	Hovers bool
}

type palette struct {
	gutter, caret, hover, complete, errs, warn, faint *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		gutter:   color.New(color.Faint),
		caret:    color.New(color.FgCyan, color.Bold),
		hover:    color.New(color.FgCyan),
		complete: color.New(color.FgGreen),
		errs:     color.New(color.FgRed),
		warn:     color.New(color.FgYellow),
		faint:    color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.gutter, p.caret, p.hover, p.complete, p.errs, p.warn, p.faint} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Text writes the displayed code with every query answer and diagnostic drawn under
// the line it belongs to.
func Text(w io.Writer, res *twoslash.Result, opts TextOptions) error {
	if opts.TabWidth <= 0 {
		opts.TabWidth = DefaultTabWidth
	}
	p := newPalette(opts.Color)
	bw := bufio.NewWriter(w)

	lines := strings.Split(res.Code, "\n")
	width := len(strconv.Itoa(len(lines)))

	queries := make(map[int][]twoslash.Query)
	for _, q := range res.Queries {
		// the marker sat on the line after its target
		queries[q.Line-1] = append(queries[q.Line-1], q)
	}
	diags := make(map[int][]diagnostic.Diagnostic)
	for _, d := range res.Errors {
		diags[d.Line] = append(diags[d.Line], d)
	}

	blank := strings.Repeat(" ", width) + " " + p.gutter.Sprint("|") + " "

	for i, line := range lines {
		num := fmt.Sprintf("%*d", width, i+1)
		fmt.Fprintf(bw, "%s %s %s\n", p.gutter.Sprint(num), p.gutter.Sprint("|"), ExpandTabs(line, opts.TabWidth))

		for _, d := range diags[i] {
			start := DisplayColumn(line, d.Character, opts.TabWidth)
			end := DisplayColumn(line, d.Character+d.Length, opts.TabWidth)
			span := max(end-start, 1)
			c := p.errs
			if d.Category != backend.SeverityError {
				c = p.warn
			}
			label := string(d.Category)
			if d.ID != "" {
				label += "[" + d.ID + "]"
			}
			fmt.Fprintf(bw, "%s%s%s %s\n", blank, strings.Repeat(" ", start), c.Sprint(strings.Repeat("~", span)), c.Sprintf("%s: %s", label, d.RenderedMessage))
		}

		for _, q := range queries[i] {
			col := DisplayColumn(line, q.Offset, opts.TabWidth)
			pad := strings.Repeat(" ", col)
			fmt.Fprintf(bw, "%s%s%s %s\n", blank, pad, p.caret.Sprint("^"), answer(p, q, blank+pad+"  "))
		}
	}

	if summary := summarize(p, res.Errors); summary != "" {
		fmt.Fprintf(bw, "\n%s\n", summary)
	}

	if opts.Hovers && len(res.StaticQuickInfos) > 0 {
		fmt.Fprintln(bw)
		for _, info := range res.StaticQuickInfos {
			fmt.Fprintf(bw, "%s %s %s\n",
				p.faint.Sprintf("%d:%d", info.Line+1, info.Character+1),
				info.TargetString,
				p.hover.Sprint(indent(info.Text, "    ")))
		}
	}

	if err := bw.Flush(); err != nil {
		return errors.Errorf("writing text: %w", err)
	}
	return nil
}

func answer(p palette, q twoslash.Query, continuation string) string {
	switch q.Kind {
	case twoslash.KindCompletions:
		if q.Completions == nil {
			return p.faint.Sprint("(no completions)")
		}
		names := make([]string, 0, len(*q.Completions))
		for _, c := range *q.Completions {
			names = append(names, c.Name)
		}
		return p.complete.Sprint(strings.Join(names, ", "))
	default:
		if q.Text == nil {
			return p.faint.Sprint("(no hover)")
		}
		return p.hover.Sprint(indent(*q.Text, continuation))
	}
}

// summarize counts diagnostics per category, most severe first.
func summarize(p palette, diags []diagnostic.Diagnostic) string {
	counts := diagnostic.Count(diags)
	var parts []string
	for _, sev := range []backend.Severity{backend.SeverityError, backend.SeverityWarning, backend.SeverityMessage, backend.SeveritySuggestion} {
		if counts[sev] == 0 {
			continue
		}
		c := p.warn
		if sev == backend.SeverityError {
			c = p.errs
		}
		parts = append(parts, c.Sprintf("%d %s", counts[sev], sev))
	}
	return strings.Join(parts, ", ")
}

// indent prefixes every line after the first.
func indent(s, prefix string) string {
	return strings.ReplaceAll(s, "\n", "\n"+prefix)
}
