package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// pathVarRegex matches ${DATE:fmt}. DATA is accepted as a common misspelling.
var pathVarRegex = regexp.MustCompile(`\$\{(?:DATE|DATA):([^}]+)\}`)

// dateTokens are matched longest first at each position.
var dateTokens = []string{"yyyy", "YYYY", "SSS", "yy", "YY", "MM", "dd", "DD", "HH", "mm", "ss", "M", "d", "D", "H", "m", "s"}

// ExpandPathVars replaces every ${DATE:fmt} in path with now formatted by fmt.
func ExpandPathVars(path string, now time.Time) string {
	return pathVarRegex.ReplaceAllStringFunc(path, func(m string) string {
		sub := pathVarRegex.FindStringSubmatch(m)
		return FormatDate(now, sub[1])
	})
}

// FormatDate renders t using yyyy/yy, MM/M, dd/d, HH/H, mm/m, ss/s and SSS
// tokens. Other characters are copied through.
func FormatDate(t time.Time, format string) string {
	var b strings.Builder
	for i := 0; i < len(format); {
		tok := matchToken(format[i:])
		if tok == "" {
			b.WriteByte(format[i])
			i++
			continue
		}
		b.WriteString(renderToken(t, tok))
		i += len(tok)
	}
	return b.String()
}

func matchToken(s string) string {
	for _, tok := range dateTokens {
		if strings.HasPrefix(s, tok) {
			return tok
		}
	}
	return ""
}

func renderToken(t time.Time, tok string) string {
	switch tok {
	case "yyyy", "YYYY":
		return strconv.Itoa(t.Year())
	case "yy", "YY":
		return fmt.Sprintf("%02d", t.Year()%100)
	case "MM":
		return fmt.Sprintf("%02d", int(t.Month()))
	case "M":
		return strconv.Itoa(int(t.Month()))
	case "dd", "DD":
		return fmt.Sprintf("%02d", t.Day())
	case "d", "D":
		return strconv.Itoa(t.Day())
	case "HH":
		return fmt.Sprintf("%02d", t.Hour())
	case "H":
		return strconv.Itoa(t.Hour())
	case "mm":
		return fmt.Sprintf("%02d", t.Minute())
	case "m":
		return strconv.Itoa(t.Minute())
	case "ss":
		return fmt.Sprintf("%02d", t.Second())
	case "s":
		return strconv.Itoa(t.Second())
	case "SSS":
		return fmt.Sprintf("%03d", t.Nanosecond()/int(time.Millisecond))
	}
	return tok
}
