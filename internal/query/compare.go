package query

import (
	"strings"
	"time"

	"github.com/agentic-research/contentgraph/internal/content"
	"github.com/ohler55/ojg/jp"
)

// Direction orders a sort key.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// ParseDirection accepts "asc"/"desc" (case-insensitive); anything else is Asc.
func ParseDirection(s string) Direction {
	if strings.EqualFold(s, "desc") {
		return Desc
	}
	return Asc
}

// Comparator orders two entries: negative if a sorts first, positive if b
// does, zero on a tie.
type Comparator func(a, b *content.Entry) int

// dateLayouts are tried, in order, when comparing string values.
var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// compile parses a field path. Bare paths ("date", "seo.title") are
// rooted at "$."; anything starting with "$" is used as-is.
func compile(path string) (jp.Expr, error) {
	if !strings.HasPrefix(path, "$") {
		path = "$." + path
	}
	return jp.ParseString(path)
}

// firstValue returns the first non-nil value the expression yields.
func firstValue(x jp.Expr, data map[string]any) (any, bool) {
	for _, v := range x.Get(data) {
		if v != nil {
			return v, true
		}
	}
	return nil, false
}

// fieldComparator sorts by a field value. Missing and null values sort
// after all defined values in either direction.
func fieldComparator(x jp.Expr, dir Direction) Comparator {
	return func(a, b *content.Entry) int {
		va, okA := firstValue(x, a.Data)
		vb, okB := firstValue(x, b.Data)
		switch {
		case !okA && !okB:
			return 0
		case !okA:
			return 1
		case !okB:
			return -1
		}
		c := compareValues(va, vb)
		if dir == Desc {
			c = -c
		}
		return c
	}
}

// ByID orders entries by id.
func ByID(dir Direction) Comparator {
	return func(a, b *content.Entry) int {
		c := strings.Compare(a.ID, b.ID)
		if dir == Desc {
			c = -c
		}
		return c
	}
}

// value kinds, in cross-kind sort order.
const (
	kindBool = iota
	kindNumber
	kindTime
	kindString
	kindOther
)

func classify(v any) (int, any) {
	switch t := v.(type) {
	case bool:
		return kindBool, t
	case float64:
		return kindNumber, t
	case float32:
		return kindNumber, float64(t)
	case int:
		return kindNumber, float64(t)
	case int64:
		return kindNumber, float64(t)
	case int32:
		return kindNumber, float64(t)
	case uint64:
		return kindNumber, float64(t)
	case time.Time:
		return kindTime, t
	case string:
		if ts, ok := parseDate(t); ok {
			return kindTime, ts
		}
		return kindString, t
	}
	return kindOther, v
}

func parseDate(s string) (time.Time, bool) {
	if len(s) < len("2006-01-02") || s[4] != '-' {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// compareValues orders two defined values. Values of different kinds are
// ordered by kind so the comparison stays total.
func compareValues(a, b any) int {
	ka, va := classify(a)
	kb, vb := classify(b)
	if ka != kb {
		return ka - kb
	}
	switch ka {
	case kindBool:
		x, y := va.(bool), vb.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case kindNumber:
		x, y := va.(float64), vb.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case kindTime:
		return va.(time.Time).Compare(vb.(time.Time))
	case kindString:
		return strings.Compare(va.(string), vb.(string))
	}
	return 0
}

// equalValues reports whether two decoded values are equal, treating all
// numeric types alike.
func equalValues(a, b any) bool {
	ka, _ := classify(a)
	kb, _ := classify(b)
	if ka == kindOther || kb == kindOther {
		return a == nil && b == nil
	}
	if ka != kb {
		return false
	}
	return compareValues(a, b) == 0
}
