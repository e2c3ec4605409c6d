// Package extract locates factory construction calls in generated test text.
//
// Extraction is purely lexical: the scanner walks raw bytes, skips string
// literals and line comments, and captures balanced argument lists. It never
// parses the test language, so it cannot be confused by code that merely
// mentions a helper name inside a string or comment.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"factorytune/pkg/models"
)

// ErrNotText reports input that is not valid UTF-8.
var ErrNotText = errors.New("input is not valid UTF-8 text")

// receiverName is the only receiver a factory helper may be called through.
// Any other receiver means the method belongs to someone else.
const receiverName = "FactoryBot"

// lookback bounds how far before a call the binding patterns search.
const lookback = 250

var (
	// letBinding matches the tail of `let(:name) {`, `let!(:name) do`, or
	// `subject(:name) {` immediately before a construction call.
	letBinding = regexp.MustCompile(`(?:let!?|subject)\(\s*:([A-Za-z_]\w*)\s*\)\s*(?:\{|do)\s*$`)
	// assignBinding matches the tail of `name = ` or `name ||= `.
	assignBinding = regexp.MustCompile(`(@?[A-Za-z_]\w*)\s*(?:\|\|)?=\s*$`)
	// symbolArg matches a leading factory symbol in an argument list.
	symbolArg = regexp.MustCompile(`^\s*:([A-Za-z_]\w*)`)
)

// Scan finds every factory construction call in text, in document order.
// Sites that are recognized but cannot be captured carry a ParseErr and are
// reported, never rewritten; one bad site never aborts the scan. The scan
// itself fails only on non-text input.
//
// A construction nested inside another construction's argument list is not
// a separate site; it travels verbatim with the enclosing one, keeping all
// spans disjoint. Paren-less invocations are out of scope.
func Scan(text string) ([]models.CallSite, error) {
	if !utf8.ValidString(text) {
		return nil, ErrNotText
	}

	var sites []models.CallSite
	i := 0
	for i < len(text) {
		switch c := text[i]; {
		case c == '#':
			i = skipLineComment(text, i)
		case c == '\'' || c == '"':
			i = skipString(text, i)
		case isWordStart(c):
			end := wordEnd(text, i)
			variant, list, known := models.VariantForMethod(text[i:end])
			if !known {
				i = end
				continue
			}
			spanStart, receiver, bare := callStart(text, i)
			if !bare {
				i = end
				continue
			}
			site, next, ok := capture(text, spanStart, end, receiver, variant, list)
			if !ok {
				i = end
				continue
			}
			site.ID = fmt.Sprintf("site-%d", len(sites)+1)
			sites = append(sites, site)
			i = next
		default:
			i++
		}
	}
	return sites, nil
}

// capture reads the argument list that follows a matched helper head.
// It returns false when the head is not actually a call (no opening paren),
// which is not an error; paren-less invocations are simply out of scope.
func capture(text string, spanStart, headEnd int, receiver string, variant models.Variant, list bool) (models.CallSite, int, bool) {
	open := headEnd
	for open < len(text) && (text[open] == ' ' || text[open] == '\t') {
		open++
	}
	if open >= len(text) || text[open] != '(' {
		return models.CallSite{}, 0, false
	}

	site := models.CallSite{
		Variant:  variant,
		List:     list,
		Receiver: receiver,
		Binding:  findBinding(text, spanStart),
	}

	closeIdx, terminated := scanBalanced(text, open)
	if !terminated {
		site.Span = models.Span{Start: spanStart, End: len(text)}
		site.ArgumentText = text[open+1:]
		site.ParseErr = "unterminated argument list"
		return site, len(text), true
	}

	site.Span = models.Span{Start: spanStart, End: closeIdx + 1}
	site.ArgumentText = text[open+1 : closeIdx]
	if m := symbolArg.FindStringSubmatch(site.ArgumentText); m != nil {
		site.SchemaName = m[1]
	} else {
		site.ParseErr = "first argument is not a factory symbol"
	}
	return site, closeIdx + 1, true
}

// scanBalanced walks from the opening paren to its match, skipping strings
// and comments so parens inside literals do not skew the depth.
func scanBalanced(text string, open int) (int, bool) {
	depth := 1
	i := open + 1
	for i < len(text) {
		switch text[i] {
		case '#':
			i = skipLineComment(text, i)
		case '\'', '"':
			i = skipString(text, i)
		case '(':
			depth++
			i++
		case ')':
			depth--
			if depth == 0 {
				return i, true
			}
			i++
		default:
			i++
		}
	}
	return 0, false
}

// callStart decides whether the head at headStart is a factory call and
// where its span begins. Bare calls qualify; so does the explicit
// FactoryBot receiver form. A head reached through any other receiver, or
// glued to a word, symbol, or sigil, belongs to someone else.
func callStart(text string, headStart int) (int, string, bool) {
	if headStart == 0 {
		return headStart, "", true
	}
	prev := text[headStart-1]
	if isWordByte(prev) || prev == ':' || prev == '@' || prev == '$' {
		return 0, "", false
	}
	if prev != '.' {
		return headStart, "", true
	}

	recvEnd := headStart - 1
	recvStart := recvEnd - len(receiverName)
	if recvStart < 0 || text[recvStart:recvEnd] != receiverName {
		return 0, "", false
	}
	if recvStart >= 2 && text[recvStart-2:recvStart] == "::" {
		if recvStart >= 3 && isWordByte(text[recvStart-3]) {
			return 0, "", false
		}
		return recvStart - 2, "::" + receiverName, true
	}
	if recvStart > 0 {
		if b := text[recvStart-1]; isWordByte(b) || b == ':' || b == '.' || b == '@' {
			return 0, "", false
		}
	}
	return recvStart, receiverName, true
}

// findBinding looks just before the call for the name its result is bound
// to. Let-style blocks and plain assignments qualify; attribute writes like
// `record.name =` do not.
func findBinding(text string, spanStart int) string {
	lo := spanStart - lookback
	if lo < 0 {
		lo = 0
	}
	window := text[lo:spanStart]

	if m := letBinding.FindStringSubmatch(window); m != nil {
		return m[1]
	}
	if loc := assignBinding.FindStringSubmatchIndex(window); loc != nil {
		start := loc[2]
		if start == 0 || !isAttrByte(window[start-1]) {
			return window[loc[2]:loc[3]]
		}
	}
	return ""
}

func skipLineComment(text string, i int) int {
	for i < len(text) && text[i] != '\n' {
		i++
	}
	return i
}

func skipString(text string, i int) int {
	quote := text[i]
	i++
	for i < len(text) {
		switch text[i] {
		case '\\':
			i += 2
		case quote:
			return i + 1
		default:
			i++
		}
	}
	return len(text)
}

func wordEnd(text string, i int) int {
	for i < len(text) && isWordByte(text[i]) {
		i++
	}
	return i
}

func isWordStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isWordByte(c byte) bool {
	return isWordStart(c) || ('0' <= c && c <= '9')
}

func isAttrByte(c byte) bool {
	return isWordByte(c) || c == '.' || c == ':' || c == '@' || c == '$'
}
