package ingestion

import (
	"sort"
	"strings"
)

// Aggregate groups raw events by event type under a locale-independent
// ASCII case fold, retaining the first-observed spelling as the
// representative for each group, and returns one ResultRow per group
// sorted by event type (case-insensitive ascending, ties broken by
// first-observed order). It performs no I/O and never fails.
func Aggregate(events []RawEvent) []ResultRow {
	type group struct {
		representative string
		count          int
		firstIndex     int
	}

	groups := make(map[string]*group, len(events))
	order := make([]string, 0, len(events))

	for i, e := range events {
		key := asciiFold(e.Type)

		g, ok := groups[key]
		if !ok {
			g = &group{representative: e.Type, firstIndex: i}
			groups[key] = g
			order = append(order, key)
		}

		g.count++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return asciiFold(groups[order[i]].representative) < asciiFold(groups[order[j]].representative)
	})

	results := make([]ResultRow, 0, len(order))
	for _, key := range order {
		g := groups[key]
		results = append(results, ResultRow{
			EventType: g.representative,
			Count:     g.count,
		})
	}

	return results
}

// asciiFold lowercases only the ASCII letters of s, leaving any other byte
// untouched. This matches the "locale-independent ASCII fold" contract:
// it must not depend on the process locale the way strings.ToLower can for
// non-ASCII runes.
func asciiFold(s string) string {
	var b strings.Builder

	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}

		b.WriteByte(c)
	}

	return b.String()
}
