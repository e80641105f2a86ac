package docstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/amaralx48x/ama-imoveis-app-sub000/pkg/types"
)

// candidate is a document decoded for query evaluation.
type candidate struct {
	doc    types.Document
	fields map[string]any
}

// Evaluate applies the filters, ordering and limit of loc to docs, which
// must already be restricted to the query's collection. Documents whose
// body is not a JSON object are skipped. Without an explicit order,
// results are sorted by document path; the path also breaks ties.
func Evaluate(loc types.Locator, docs []types.Document) ([]types.Document, error) {
	filters := loc.Filters()
	orders := loc.Orders()

	matched := make([]candidate, 0, len(docs))
	for _, d := range docs {
		var fields map[string]any
		if err := json.Unmarshal(d.Data, &fields); err != nil || fields == nil {
			continue
		}
		ok, err := matchAll(fields, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, candidate{doc: d, fields: fields})
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		for _, o := range orders {
			a, _ := lookup(matched[i].fields, o.Field)
			b, _ := lookup(matched[j].fields, o.Field)
			c := compare(a, b)
			if c == 0 {
				continue
			}
			if o.Dir == types.Desc {
				return c > 0
			}
			return c < 0
		}
		return matched[i].doc.Path < matched[j].doc.Path
	})

	n := len(matched)
	if limit := loc.LimitN(); limit > 0 && limit < n {
		n = limit
	}
	out := make([]types.Document, 0, n)
	for _, c := range matched[:n] {
		out = append(out, c.doc)
	}
	return out, nil
}

func matchAll(fields map[string]any, filters []types.Filter) (bool, error) {
	for _, f := range filters {
		v, present := lookup(fields, f.Field)
		ok, err := match(v, present, f)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func match(v any, present bool, f types.Filter) (bool, error) {
	switch f.Op {
	case types.OpEqual:
		return present && compare(v, f.Value) == 0 && sameKind(v, f.Value), nil
	case types.OpNotEqual:
		return present && !(compare(v, f.Value) == 0 && sameKind(v, f.Value)), nil
	case types.OpLess, types.OpLessEqual, types.OpGreater, types.OpGreaterEqual:
		// Range filters only match values of the same type.
		if !present || !sameKind(v, f.Value) {
			return false, nil
		}
		c := compare(v, f.Value)
		switch f.Op {
		case types.OpLess:
			return c < 0, nil
		case types.OpLessEqual:
			return c <= 0, nil
		case types.OpGreater:
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	case types.OpIn:
		list, ok := f.Value.([]any)
		if !ok {
			return false, fmt.Errorf("%w: %q needs a list", types.ErrInvalidFilter, f.Op)
		}
		if !present {
			return false, nil
		}
		for _, item := range list {
			if sameKind(v, item) && compare(v, item) == 0 {
				return true, nil
			}
		}
		return false, nil
	case types.OpArrayContains:
		arr, ok := v.([]any)
		if !present || !ok {
			return false, nil
		}
		for _, item := range arr {
			if sameKind(item, f.Value) && compare(item, f.Value) == 0 {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", types.ErrInvalidOperator, f.Op)
	}
}

// lookup resolves a dotted field path such as "address.city".
func lookup(fields map[string]any, path string) (any, bool) {
	var cur any = fields
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// rank orders JSON value kinds: null < bool < number < string < array < object.
func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	case []any:
		return 4
	default:
		return 5
	}
}

func sameKind(a, b any) bool { return rank(a) == rank(b) }

// compare totally orders decoded JSON values.
func compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch x := a.(type) {
	case nil:
		return 0
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case string:
		return strings.Compare(x, b.(string))
	case []any:
		y := b.([]any)
		for i := 0; i < len(x) && i < len(y); i++ {
			if c := compare(x[i], y[i]); c != 0 {
				return c
			}
		}
		return len(x) - len(y)
	default:
		ax, _ := json.Marshal(a)
		bx, _ := json.Marshal(b)
		return strings.Compare(string(ax), string(bx))
	}
}
