// Package loosejson decodes JSON blobs lifted out of markup, which are often
// wrapped in a string literal or carry JavaScript escape sequences.
package loosejson

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"postmedia/pkg/payload"
)

// Decode tries each interpretation of raw in turn and returns the first one
// that yields an object:
//
//  1. the trimmed text, minus one trailing semicolon, as JSON
//  2. when that is a JSON string, its contents as JSON
//  3. the JavaScript-unescaped text, then 1 and 2 again
func Decode(raw string) (*payload.Node, bool) {
	if node, ok := decodeStrict(raw); ok {
		return node, true
	}
	unescaped := UnescapeJS(raw)
	if unescaped == raw {
		return nil, false
	}
	return decodeStrict(unescaped)
}

func decodeStrict(raw string) (*payload.Node, bool) {
	text := strings.TrimSpace(raw)
	text = strings.TrimSuffix(text, ";")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	node, err := payload.Parse(text)
	if err != nil {
		return nil, false
	}
	if node.IsObject() {
		return node, true
	}
	if inner, ok := node.Str(); ok {
		nested, err := payload.Parse(strings.TrimSpace(inner))
		if err == nil && nested.IsObject() {
			return nested, true
		}
	}
	return nil, false
}

// UnescapeJS decodes JavaScript string escapes: \uXXXX (surrogate pairs are
// joined), \xHH, octal, the single-letter escapes and escaped quotes, slash and
// backslash. Unknown or malformed escapes are kept verbatim.
func UnescapeJS(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			i++
			continue
		}

		next := s[i+1]
		switch next {
		case '"', '\'', '/', '\\':
			b.WriteByte(next)
			i += 2
			continue
		case 'u':
			if r, n := surrogatePair(s[i:]); n > 0 {
				b.WriteRune(r)
				i += n
				continue
			}
		case '0':
			// \0 not followed by another octal digit is NUL
			if i+2 >= len(s) || !isOctal(s[i+2]) {
				b.WriteByte(0)
				i += 2
				continue
			}
		}

		value, _, tail, err := strconv.UnquoteChar(s[i:], 0)
		if err != nil {
			// keep the backslash and move on
			b.WriteByte(c)
			i++
			continue
		}
		b.WriteRune(value)
		i = len(s) - len(tail)
	}
	return b.String()
}

// surrogatePair decodes \uD83D\uDE00 style pairs that UnquoteChar rejects.
func surrogatePair(s string) (rune, int) {
	if len(s) < 12 || s[6] != '\\' || s[7] != 'u' {
		return 0, 0
	}
	hi, err := strconv.ParseUint(s[2:6], 16, 16)
	if err != nil || hi < 0xD800 || hi > 0xDBFF {
		return 0, 0
	}
	lo, err := strconv.ParseUint(s[8:12], 16, 16)
	if err != nil || lo < 0xDC00 || lo > 0xDFFF {
		return 0, 0
	}
	r := (rune(hi)-0xD800)<<10 + (rune(lo) - 0xDC00) + 0x10000
	if !utf8.ValidRune(r) {
		return 0, 0
	}
	return r, 12
}

func isOctal(c byte) bool {
	return c >= '0' && c <= '7'
}
