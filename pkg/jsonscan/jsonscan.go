// Package jsonscan locates JSON objects embedded in raw markup or script text.
//
// Pages that server-render their state rarely expose it as a standalone
// document: the JSON sits inside a <script> body, after a key literal, or as
// an argument to a bootstrap callback. The scanners here find those spots by
// marker and cut out the syntactically balanced object with a string-aware
// brace counter, so braces inside quoted values never end an object early.
package jsonscan

import "strings"

// Span is a raw text region believed to contain a JSON value.
type Span struct {
	// Text is the extracted object or string literal, delimiters included.
	Text string
	// Marker is the literal that located the span.
	Marker string
	// Offset is the byte offset of Text within the scanned source.
	Offset int
}

// ObjectsAfter returns every balanced {...} object that follows an occurrence
// of marker, after optional whitespace. Occurrences not followed by '{' and
// objects that never close are skipped; the search resumes right after the
// marker either way.
func ObjectsAfter(text, marker string) []Span {
	var spans []Span
	if marker == "" {
		return spans
	}

	pos := 0
	for pos < len(text) {
		idx := strings.Index(text[pos:], marker)
		if idx < 0 {
			break
		}
		afterMarker := pos + idx + len(marker)
		pos = afterMarker

		start := skipSpace(text, afterMarker)
		if start >= len(text) || text[start] != '{' {
			continue
		}
		if obj, ok := ObjectAt(text, start); ok {
			spans = append(spans, Span{Text: obj, Marker: marker, Offset: start})
		}
	}
	return spans
}

// ObjectAt scans the balanced object opening at text[start]. It reports false
// when text[start] is not '{' or the object is truncated.
func ObjectAt(text string, start int) (string, bool) {
	if start < 0 || start >= len(text) || text[start] != '{' {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// StringsAfter returns every double-quoted string literal that follows an
// occurrence of marker, quotes included. It covers state that pages ship as
// JSON encoded inside a JSON string, e.g. "contextJSON":"{\"gql_data\":...}".
func StringsAfter(text, marker string) []Span {
	var spans []Span
	if marker == "" {
		return spans
	}

	pos := 0
	for pos < len(text) {
		idx := strings.Index(text[pos:], marker)
		if idx < 0 {
			break
		}
		afterMarker := pos + idx + len(marker)
		pos = afterMarker

		start := skipSpace(text, afterMarker)
		if start >= len(text) || text[start] != '"' {
			continue
		}
		if lit, ok := stringAt(text, start); ok {
			spans = append(spans, Span{Text: lit, Marker: marker, Offset: start})
		}
	}
	return spans
}

func stringAt(text string, start int) (string, bool) {
	escaped := false
	for i := start + 1; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			return text[start : i+1], true
		}
	}
	return "", false
}

// CallbackObjects handles the legacy bootstrap pattern
//
//	callee('/p/CODE/', {...});
//
// For each call of callee it skips the first argument up to the top-level
// comma and extracts the balanced object that follows.
func CallbackObjects(text, callee string) []Span {
	var spans []Span
	if callee == "" {
		return spans
	}
	marker := callee + "("

	pos := 0
	for pos < len(text) {
		idx := strings.Index(text[pos:], marker)
		if idx < 0 {
			break
		}
		argStart := pos + idx + len(marker)
		pos = argStart

		comma, ok := firstArgEnd(text, argStart)
		if !ok {
			continue
		}
		start := skipSpace(text, comma+1)
		if start >= len(text) || text[start] != '{' {
			continue
		}
		if obj, ok := ObjectAt(text, start); ok {
			spans = append(spans, Span{Text: obj, Marker: marker, Offset: start})
		}
	}
	return spans
}

// firstArgEnd finds the comma that ends the first call argument, honoring
// both quote styles and nested brackets.
func firstArgEnd(text string, start int) (int, bool) {
	depth := 0
	var quote byte
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				return 0, false
			}
			depth--
		case ',':
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func skipSpace(text string, i int) int {
	for i < len(text) {
		switch text[i] {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			i++
		default:
			return i
		}
	}
	return i
}
