package render

import (
	"path/filepath"
	"strconv"

	"github.com/editorconfig/editorconfig-core-go/v2"
)

const DefaultTabWidth = 4

// TabWidthFor resolves the tab width .editorconfig files assign to path. Paths without
// a setting get DefaultTabWidth.
func TabWidthFor(path string) int {
	abs, err := filepath.Abs(path)
	if err != nil {
		return DefaultTabWidth
	}
	def, err := editorconfig.GetDefinitionForFilename(abs)
	if err != nil || def == nil {
		return DefaultTabWidth
	}
	if def.TabWidth > 0 {
		return def.TabWidth
	}
	if n, err := strconv.Atoi(def.IndentSize); err == nil && n > 0 {
		return n
	}
	return DefaultTabWidth
}
