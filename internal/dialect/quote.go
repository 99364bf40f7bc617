package dialect

import "strings"

// QuoteIdent quotes a single identifier for d.
//
// PostgreSQL and Oracle fold unquoted names to lower and upper case
// respectively, so the identifier is folded the same way before quoting.
// Quoted names then resolve exactly as the unquoted spelling would.
func QuoteIdent(d Name, ident string) string {
	switch d {
	case MSSQLName:
		return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
	case MySQLName:
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	case PostgresName:
		return `"` + strings.ReplaceAll(strings.ToLower(ident), `"`, `""`) + `"`
	case OracleName:
		return `"` + strings.ReplaceAll(strings.ToUpper(ident), `"`, `""`) + `"`
	}
	return ident
}

// QuoteTable quotes a possibly schema-qualified table name part by part.
func QuoteTable(d Name, table string) string {
	parts := strings.Split(stripQuotes(table), ".")
	for i, p := range parts {
		parts[i] = QuoteIdent(d, strings.TrimSpace(p))
	}
	return strings.Join(parts, ".")
}

// SplitTable separates "schema.table" into its parts. schema is empty for
// unqualified names. Existing bracket, backtick and double quotes are removed.
func SplitTable(table string) (schema, name string) {
	clean := stripQuotes(strings.TrimSpace(table))
	if i := strings.LastIndex(clean, "."); i >= 0 {
		return strings.TrimSpace(clean[:i]), strings.TrimSpace(clean[i+1:])
	}
	return "", clean
}

func stripQuotes(s string) string {
	return strings.NewReplacer("[", "", "]", "", "`", "", `"`, "").Replace(s)
}

// quoteLiteral renders v as a single-quoted SQL string literal.
func quoteLiteral(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}
