package utils

import "strings"

// QuoteIdentifier wraps an identifier in the given quote character, handling
// qualified names. Each dot separated part is quoted on its own and quote
// characters inside a part are doubled.
//
// Examples (quote = '"'):
//   - "strata_history" -> "\"strata_history\""
//   - "public.strata_history" -> "\"public\".\"strata_history\""
//   - "\"strata_history\"" -> "\"strata_history\"" (already quoted, left as is)
//   - "" -> ""
//
// Examples (quote = '`'):
//   - "ops.strata_history" -> "`ops`.`strata_history`"
func QuoteIdentifier(name string, quote byte) string {
	if name == "" {
		return ""
	}

	q := string(quote)
	if IsQuoted(name, quote) {
		return name
	}

	parts := strings.Split(name, ".")
	for i, part := range parts {
		if IsQuoted(part, quote) {
			continue
		}
		parts[i] = q + strings.ReplaceAll(part, q, q+q) + q
	}

	return strings.Join(parts, ".")
}

// IsQuoted checks if a string is a single identifier wrapped in the given
// quote character.
//
// Examples (quote = '`'):
//   - "`table`" -> true
//   - "table" -> false
//   - "`db`.`table`" -> false (qualified name, not a single quoted identifier)
//   - "" -> false
func IsQuoted(s string, quote byte) bool {
	return len(s) >= 2 && s[0] == quote && s[len(s)-1] == quote && !strings.ContainsRune(s[1:len(s)-1], rune(quote))
}
