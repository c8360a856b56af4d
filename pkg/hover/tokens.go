package hover

import (
	"unicode"
	"unicode/utf8"

	"github.com/walteh/twoslash/pkg/position"
)

// IdentifierSpans lexes text for identifier-shaped tokens, skipping line comments and
// quoted literals. Spans are offset by base.
func IdentifierSpans(text string, base int) []position.Span {
	var spans []position.Span

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])

		switch {
		case r == '/' && i+1 < len(text) && text[i+1] == '/':
			for i < len(text) && text[i] != '\n' {
				i++
			}
		case r == '"' || r == '`':
			i = skipQuoted(text, i, byte(r))
		case r == '\'' && isCharLiteral(text[i:]):
			i = skipQuoted(text, i, '\'')
		case IsIdentStart(r):
			start := i
			i += size
			for i < len(text) {
				r, size = utf8.DecodeRuneInString(text[i:])
				if !IsIdentPart(r) {
					break
				}
				i += size
			}
			spans = append(spans, position.Span{Start: start + base, Length: i - start})
		case unicode.IsDigit(r):
			// numeric literals such as 0x1f or 1e9 are not identifiers
			for i < len(text) {
				r, size = utf8.DecodeRuneInString(text[i:])
				if !IsIdentPart(r) {
					break
				}
				i += size
			}
		default:
			i += size
		}
	}

	return spans
}

func skipQuoted(text string, i int, quote byte) int {
	i++
	for i < len(text) {
		switch text[i] {
		case '\\':
			if quote != '`' {
				i++
			}
		case '\n':
			if quote != '`' {
				return i
			}
		case quote:
			return i + 1
		}
		i++
	}
	return i
}

// isCharLiteral tells a character literal from a lifetime or label such as 'static.
func isCharLiteral(s string) bool {
	if len(s) < 3 {
		return false
	}
	if s[1] == '\\' {
		return true
	}
	_, size := utf8.DecodeRuneInString(s[1:])
	return 1+size < len(s) && s[1+size] == '\''
}

func IsIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func IsIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
