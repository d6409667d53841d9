package vulnquery

// record is any row shape with an order-sensitive composite key over all of
// its fields.
type record interface {
	dedupeKey() string
}

// dedupe keeps the first occurrence of each key, preserving encounter order.
// Two rows are duplicates only if every field matches exactly.
func dedupe[T record](rows []T) []T {
	if len(rows) < 2 {
		return rows
	}

	seen := make(map[string]struct{}, len(rows))
	out := rows[:0]
	for _, row := range rows {
		key := row.dedupeKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out
}
