package rewrite

import "strings"

// Capitalize upper-cases the first rune and lower-cases the remainder, the
// convention used for generated TableColumn identifiers.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// Singularize strips a plural suffix from a table name for use in generated
// foreign-key and AS-alias identifiers: "Orders" becomes "Order",
// "Categories" becomes "Category". Names that do not look plural pass
// through unchanged.
func Singularize(s string) string {
	lower := strings.ToLower(s)
	switch {
	case len(s) <= 2:
		return s
	case strings.HasSuffix(lower, "ies"):
		return s[:len(s)-3] + "y"
	case strings.HasSuffix(lower, "ss"):
		return s
	case strings.HasSuffix(lower, "s"):
		return s[:len(s)-1]
	default:
		return s
	}
}

// tableAlias derives the generated alias for a table: its first three
// characters, lower-cased.
func tableAlias(table string) string {
	table = strings.TrimSpace(table)
	if len(table) > 3 {
		table = table[:3]
	}
	return strings.ToLower(table)
}

// reservedWords are identifiers that can follow a table name in a FROM/JOIN
// clause without being its alias.
var reservedWords = map[string]struct{}{
	"WHERE": {}, "GROUP": {}, "ORDER": {}, "HAVING": {}, "LIMIT": {},
	"OFFSET": {}, "UNION": {}, "JOIN": {}, "INNER": {}, "LEFT": {},
	"RIGHT": {}, "FULL": {}, "OUTER": {}, "CROSS": {}, "ON": {}, "AS": {},
	"AND": {}, "OR": {}, "NOT": {}, "SELECT": {}, "FROM": {},
}

func isReserved(ident string) bool {
	_, ok := reservedWords[strings.ToUpper(ident)]
	return ok
}
