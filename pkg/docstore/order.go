package docstore

import (
	"sort"
	"strings"
)

// Ordering ranks of child values: absent/null, false, true, numbers, strings, objects.
const (
	rankNull = iota
	rankFalse
	rankTrue
	rankNumber
	rankString
	rankObject
)

// SortKey decomposes an ordering value into (rank, number, string) so that comparing the
// tuples orders values the same way Compare does.
func SortKey(value any) (rank int, num float64, str string) {
	switch v := value.(type) {
	case nil:
		return rankNull, 0, ""
	case bool:
		if v {
			return rankTrue, 0, ""
		}
		return rankFalse, 0, ""
	case float64:
		return rankNumber, v, ""
	case float32:
		return rankNumber, float64(v), ""
	case int:
		return rankNumber, float64(v), ""
	case int64:
		return rankNumber, float64(v), ""
	case string:
		return rankString, 0, v
	default:
		return rankObject, 0, ""
	}
}

// Compare orders two child values: nil < false < true < numbers < strings < objects.
// Objects compare equal to each other.
func Compare(a, b any) int {
	ra, na, sa := SortKey(a)
	rb, nb, sb := SortKey(b)
	switch {
	case ra != rb:
		return cmpInt(ra, rb)
	case ra == rankNumber:
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	case ra == rankString:
		return strings.Compare(sa, sb)
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// orderValue is the value an entry is ordered by under q.
func orderValue(e Entry, orderBy string) any {
	if orderBy == "" {
		return e.Key
	}
	return Field(e.Value, orderBy)
}

// compareEntries orders by the ordering value, then by key.
func compareEntries(a, b Entry, orderBy string) int {
	if orderBy != "" {
		if c := Compare(orderValue(a, orderBy), orderValue(b, orderBy)); c != 0 {
			return c
		}
	}
	return strings.Compare(a.Key, b.Key)
}

// ApplyQuery orders, bounds and limits entries in memory. It is the reference semantics that
// every Store's RangeQuery follows.
func ApplyQuery(entries []Entry, q Query) []Entry {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return compareEntries(sorted[i], sorted[j], q.OrderBy) < 0
	})

	out := make([]Entry, 0, len(sorted))
	for _, e := range sorted {
		v := orderValue(e, q.OrderBy)
		if q.StartAt != nil && Compare(v, q.StartAt.Value) < 0 {
			continue
		}
		if q.EndAt != nil && Compare(v, q.EndAt.Value) > 0 {
			continue
		}
		if q.StartAfter != nil {
			cursor := Entry{Key: q.StartAfter.Key}
			if q.OrderBy != "" {
				cursor.Value = cursorDoc(q.OrderBy, q.StartAfter.Value)
			}
			if compareEntries(e, cursor, q.OrderBy) <= 0 {
				continue
			}
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}

// cursorDoc builds a document holding value at field so cursors compare like entries.
func cursorDoc(field string, value any) any {
	parts, err := SplitPath(field)
	if err != nil || len(parts) == 0 {
		return nil
	}
	return setIn(nil, parts, value)
}
