package core

import (
	"strconv"
	"strings"

	"github.com/JonMunkholm/dbfleet/internal/dialect"
)

// ColumnSet is the sanitized view of a source header. The four slices are
// parallel: index i of each describes the same column.
type ColumnSet struct {
	Identifiers []string // sanitized SQL identifier
	Quoted      []string // Identifiers quoted for the target dialect
	BindKeys    []string // @key used in the INSERT template
	Sources     []string // original header, for value lookup
}

// Len returns the number of columns.
func (c ColumnSet) Len() int { return len(c.Identifiers) }

// SanitizeIdentifier strips characters outside [A-Za-z0-9_] and prefixes the
// result when it does not start with a letter or underscore. Valid
// identifiers are returned unchanged.
func SanitizeIdentifier(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" || !(s[0] == '_' || (s[0] >= 'a' && s[0] <= 'z') || (s[0] >= 'A' && s[0] <= 'Z')) {
		s = "col_" + s
	}
	return s
}

// SanitizeColumns builds the column set for headers. Empty headers are
// dropped; collisions get a numeric suffix (name, name_1, name_2...).
func SanitizeColumns(d dialect.Name, headers []string) ColumnSet {
	var set ColumnSet
	used := make(map[string]bool, len(headers))

	for _, h := range headers {
		if strings.TrimSpace(h) == "" {
			continue
		}

		id := SanitizeIdentifier(h)
		if used[strings.ToLower(id)] {
			base := id
			for n := 1; ; n++ {
				id = base + "_" + strconv.Itoa(n)
				if !used[strings.ToLower(id)] {
					break
				}
			}
		}
		used[strings.ToLower(id)] = true

		set.Identifiers = append(set.Identifiers, id)
		set.Quoted = append(set.Quoted, dialect.QuoteIdent(d, id))
		set.BindKeys = append(set.BindKeys, id)
		set.Sources = append(set.Sources, h)
	}
	return set
}

// Exclude removes every column whose identifier or source header matches one
// of names, case-insensitively, from all four slices. Order is preserved.
func (c ColumnSet) Exclude(names []string) ColumnSet {
	if len(names) == 0 {
		return c
	}
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[strings.ToLower(strings.TrimSpace(n))] = true
	}

	var out ColumnSet
	for i := range c.Identifiers {
		if drop[strings.ToLower(c.Identifiers[i])] || drop[strings.ToLower(strings.TrimSpace(c.Sources[i]))] {
			continue
		}
		out.Identifiers = append(out.Identifiers, c.Identifiers[i])
		out.Quoted = append(out.Quoted, c.Quoted[i])
		out.BindKeys = append(out.BindKeys, c.BindKeys[i])
		out.Sources = append(out.Sources, c.Sources[i])
	}
	return out
}

// BuildInsertQuery returns an INSERT template using @key placeholders, ready
// for dialect.Conn.ExecuteQuery. Use dialect.Render for the native text.
func BuildInsertQuery(d dialect.Name, table string, quotedColumns, bindKeys []string) string {
	ph := make([]string, len(bindKeys))
	for i, k := range bindKeys {
		ph[i] = "@" + k
	}
	return "INSERT INTO " + dialect.QuoteTable(d, table) +
		" (" + strings.Join(quotedColumns, ", ") + ") VALUES (" + strings.Join(ph, ", ") + ")"
}
