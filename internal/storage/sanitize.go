package storage

import "strings"

// SanitizeColumn converts a source column name into a storage column name by
// replacing every rune outside [A-Za-z0-9_] with an underscore.
//
// The function is pure and total: any input produces a usable identifier, and
// the same input always produces the same output. It replaces rather than
// drops characters so that positions are preserved, and it does not change
// case, so the storage name stays as close to the display name as the
// destination allows.
//
// Known limitation: the mapping is not injective. "Unit Price" and
// "Unit/Price" both sanitize to "Unit_Price" and would collide in the
// destination table. The source system does not produce such headers today;
// if it ever does, the collision surfaces as a duplicate-column DDL error at
// table creation, not as silent data loss.
func SanitizeColumn(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}

// SanitizeColumns applies SanitizeColumn to each name, preserving order.
func SanitizeColumns(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = SanitizeColumn(n)
	}
	return out
}
