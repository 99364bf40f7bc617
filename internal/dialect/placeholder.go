package dialect

import (
	"database/sql"
	"strconv"
	"strings"
)

// token is one @key occurrence in query text; start indexes the '@'.
type token struct {
	start, end int
	key        string
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// skipSpan reports whether a string literal, quoted identifier or comment
// starts at text[i] and returns the index just past it. Unterminated spans
// run to the end of text.
func skipSpan(d Name, text string, i int) (int, bool) {
	n := len(text)
	c := text[i]
	switch {
	case c == '\'':
		// MySQL also accepts backslash escapes inside literals.
		return skipQuoted(text, i, '\'', d == MySQLName), true

	case c == '"':
		return skipQuoted(text, i, '"', d == MySQLName), true

	case c == '`' && d == MySQLName:
		return skipQuoted(text, i, '`', false), true

	case c == '[' && d == MSSQLName:
		return skipQuoted(text, i, ']', false), true

	case c == '-' && i+1 < n && text[i+1] == '-':
		if end := strings.IndexByte(text[i:], '\n'); end >= 0 {
			return i + end + 1, true
		}
		return n, true

	case c == '/' && i+1 < n && text[i+1] == '*':
		if end := strings.Index(text[i+2:], "*/"); end >= 0 {
			return i + 2 + end + 2, true
		}
		return n, true

	case c == '$' && d == PostgresName && (i == 0 || !isIdentChar(text[i-1])):
		tag, ok := dollarTag(text[i:])
		if !ok {
			return i, false
		}
		body := i + len(tag)
		if end := strings.Index(text[body:], tag); end >= 0 {
			return body + end + len(tag), true
		}
		return n, true
	}
	return i, false
}

// skipQuoted returns the index just past the span opened at text[i] and
// closed by q. A doubled closer is an escaped one.
func skipQuoted(text string, i int, q byte, backslash bool) int {
	n := len(text)
	for j := i + 1; j < n; j++ {
		switch text[j] {
		case '\\':
			if backslash {
				j++
			}
		case q:
			if j+1 < n && text[j+1] == q {
				j++
				continue
			}
			return j + 1
		}
	}
	return n
}

// dollarTag returns the opening $tag$ of a dollar-quoted body at the start
// of s. $1 style parameters are not tags.
func dollarTag(s string) (string, bool) {
	j := 1
	if j < len(s) && isIdentStart(s[j]) {
		for j < len(s) && isIdentChar(s[j]) {
			j++
		}
	}
	if j < len(s) && s[j] == '$' {
		return s[:j+1], true
	}
	return "", false
}

// scanTokens finds @key tokens outside string literals, quoted identifiers
// and comments, using the quoting rules of d. A key is the longest
// identifier after '@', so @name never matches inside @name_1. @@VARIABLE
// references are skipped.
func scanTokens(d Name, text string) []token {
	var toks []token
	n := len(text)

	for i := 0; i < n; {
		if end, ok := skipSpan(d, text, i); ok {
			i = end
			continue
		}

		if text[i] != '@' {
			i++
			continue
		}
		if i+1 < n && text[i+1] == '@' {
			i += 2
			for i < n && isIdentChar(text[i]) {
				i++
			}
			continue
		}
		if (i > 0 && isIdentChar(text[i-1])) || i+1 >= n || !isIdentStart(text[i+1]) {
			i++
			continue
		}
		j := i + 1
		for j < n && isIdentChar(text[j]) {
			j++
		}
		toks = append(toks, token{start: i, end: j, key: text[i+1 : j]})
		i = j
	}
	return toks
}

// rewrite replaces every known token with the native placeholder of d and
// returns the bound key of each emitted placeholder in text order.
func rewrite(d Name, text string, known func(string) bool) (string, []string) {
	toks := scanTokens(d, text)
	if len(toks) == 0 {
		return text, nil
	}

	var b strings.Builder
	b.Grow(len(text))
	var order []string
	numbers := make(map[string]int)
	last := 0

	for _, t := range toks {
		if !known(t.key) {
			continue
		}
		b.WriteString(text[last:t.start])
		last = t.end
		order = append(order, t.key)

		switch d {
		case MySQLName:
			b.WriteByte('?')
		case PostgresName:
			num, ok := numbers[t.key]
			if !ok {
				num = len(numbers) + 1
				numbers[t.key] = num
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(num))
		case OracleName:
			b.WriteByte(':')
			b.WriteString(t.key)
		default:
			b.WriteString(text[t.start:t.end])
		}
	}
	b.WriteString(text[last:])
	return b.String(), order
}

// Translate converts @key tokens in text to the native syntax of d and
// returns the driver arguments in the order that syntax expects. Tokens
// without a matching entry in params are left as written.
func Translate(d Name, text string, params map[string]any) (string, []any) {
	out, order := rewrite(d, text, func(k string) bool {
		_, ok := params[k]
		return ok
	})

	args := make([]any, 0, len(order))
	if d == MySQLName {
		for _, k := range order {
			args = append(args, params[k])
		}
		return out, args
	}

	seen := make(map[string]bool, len(order))
	for _, k := range order {
		if seen[k] {
			continue
		}
		seen[k] = true
		if d == PostgresName {
			args = append(args, params[k])
		} else {
			args = append(args, sql.Named(k, params[k]))
		}
	}
	return out, args
}

// Render shows text as the driver will receive it when keys are bound,
// without needing values. Used for reporting generated statements.
func Render(d Name, text string, keys []string) string {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	out, _ := rewrite(d, text, func(k string) bool { return set[k] })
	return out
}
