package render

import (
	"strings"

	"github.com/apparentlymart/go-textseg/v13/textseg"
	"github.com/mattn/go-runewidth"
)

// clusters splits s into grapheme clusters.
func clusters(s string) []string {
	var out []string
	data := []byte(s)
	for len(data) > 0 {
		advance, token, err := textseg.ScanGraphemeClusters(data, true)
		if err != nil || advance == 0 {
			out = append(out, string(data))
			break
		}
		out = append(out, string(token))
		data = data[advance:]
	}
	return out
}

// DisplayColumn is the terminal column of byte offset col in line, with tabs
// advancing to the next multiple of tabWidth.
func DisplayColumn(line string, col, tabWidth int) int {
	if col > len(line) {
		col = len(line)
	}
	if col < 0 {
		col = 0
	}
	width := 0
	consumed := 0
	for _, c := range clusters(line) {
		if consumed >= col {
			break
		}
		width = advance(width, c, tabWidth)
		consumed += len(c)
	}
	return width
}

// ExpandTabs replaces tabs with the spaces DisplayColumn assumes.
func ExpandTabs(line string, tabWidth int) string {
	if !strings.Contains(line, "\t") {
		return line
	}
	var b strings.Builder
	width := 0
	for _, c := range clusters(line) {
		next := advance(width, c, tabWidth)
		if c == "\t" {
			b.WriteString(strings.Repeat(" ", next-width))
		} else {
			b.WriteString(c)
		}
		width = next
	}
	return b.String()
}

func advance(width int, cluster string, tabWidth int) int {
	if cluster == "\t" {
		if tabWidth <= 0 {
			tabWidth = DefaultTabWidth
		}
		return (width/tabWidth + 1) * tabWidth
	}
	return width + runewidth.StringWidth(cluster)
}
