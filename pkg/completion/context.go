package completion

import (
	"unicode/utf8"

	"github.com/walteh/twoslash/pkg/hover"
	"github.com/walteh/twoslash/pkg/position"
)

// Context describes the text around a completion request. Offset is the last typed
// character; the cursor sits right after it.
type Context struct {
	Text   string
	Offset int
}

func NewContext(text string, offset int) *Context {
	return &Context{Text: text, Offset: offset}
}

// AfterDot reports whether the cursor follows a member access, either directly after
// the dot or inside the identifier typed after it.
func (c *Context) AfterDot() bool {
	tok := c.Token()
	return tok.Start > 0 && tok.Start <= len(c.Text) && c.Text[tok.Start-1] == '.'
}

// Token is the identifier being completed. When the character at Offset is not part
// of an identifier the token is empty and starts at the cursor.
func (c *Context) Token() position.Span {
	if c.Offset < 0 || c.Offset >= len(c.Text) {
		return position.Span{Start: clamp(c.Offset+1, len(c.Text))}
	}
	r, _ := utf8.DecodeRuneInString(c.Text[c.Offset:])
	if !hover.IsIdentPart(r) {
		return position.Span{Start: c.Offset + 1}
	}

	start := c.Offset
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(c.Text[:start])
		if !hover.IsIdentPart(r) {
			break
		}
		start -= size
	}
	end := c.Offset
	for end < len(c.Text) {
		r, size := utf8.DecodeRuneInString(c.Text[end:])
		if !hover.IsIdentPart(r) {
			break
		}
		end += size
	}
	return position.NewSpan(start, end)
}

// Prefix is the text of Token.
func (c *Context) Prefix() string {
	tok := c.Token()
	return c.Text[tok.Start:tok.End()]
}

func clamp(v, hi int) int {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}
