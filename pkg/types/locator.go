package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Locator kinds.
const (
	KindDoc   = "doc"
	KindQuery = "query"
)

// collectionGroupPrefix prefixes the path of a query that spans every
// collection with a given name.
const collectionGroupPrefix = "collectionGroup:"

// groupKeyToken leads the key of a collection group query in place of
// KindQuery, keeping group keys apart from collection keys.
const groupKeyToken = "group"

// Filter operators accepted by Locator.Where.
const (
	OpEqual         = "=="
	OpNotEqual      = "!="
	OpLess          = "<"
	OpLessEqual     = "<="
	OpGreater       = ">"
	OpGreaterEqual  = ">="
	OpIn            = "in"
	OpArrayContains = "array-contains"
)

var validFilterOps = map[string]bool{
	OpEqual:         true,
	OpNotEqual:      true,
	OpLess:          true,
	OpLessEqual:     true,
	OpGreater:       true,
	OpGreaterEqual:  true,
	OpIn:            true,
	OpArrayContains: true,
}

// Sort directions for Locator.OrderBy.
const (
	Asc  = "asc"
	Desc = "desc"
)

// Locator errors.
var (
	ErrInvalidPath     = errors.New("invalid resource path")
	ErrNotDocPath      = errors.New("path does not name a document")
	ErrNotCollection   = errors.New("path does not name a collection")
	ErrInvalidOperator = errors.New("invalid filter operator")
	ErrInvalidOrder    = errors.New("invalid order direction")
	ErrInvalidLimit    = errors.New("limit must not be negative")
)

// Filter is one field predicate of a query.
type Filter struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

// Order is one sort key of a query.
type Order struct {
	Field string `json:"field"`
	Dir   string `json:"dir"`
}

// Locator identifies either a single document or a query over a collection.
// A Locator is immutable: Where, OrderBy and Limit return new values. Its
// canonical path and key are computed once at construction.
type Locator struct {
	kind    string
	path    string
	group   bool
	filters []Filter
	orders  []Order
	limit   int
	key     string
}

// Doc returns a locator for the document at path, e.g. "agents/u1".
func Doc(path string) (Locator, error) {
	segs, err := splitPath(path)
	if err != nil {
		return Locator{}, err
	}
	if len(segs)%2 != 0 {
		return Locator{}, fmt.Errorf("%w: %q", ErrNotDocPath, path)
	}
	l := Locator{kind: KindDoc, path: strings.Join(segs, "/")}
	l.key = l.canonical()
	return l, nil
}

// Collection returns a query locator over the collection at path,
// e.g. "agents/u1/properties".
func Collection(path string) (Locator, error) {
	segs, err := splitPath(path)
	if err != nil {
		return Locator{}, err
	}
	if len(segs)%2 != 1 {
		return Locator{}, fmt.Errorf("%w: %q", ErrNotCollection, path)
	}
	l := Locator{kind: KindQuery, path: strings.Join(segs, "/")}
	l.key = l.canonical()
	return l, nil
}

// CollectionGroup returns a query locator over every collection named name,
// whatever its parent document.
func CollectionGroup(name string) (Locator, error) {
	if name == "" || strings.Contains(name, "/") {
		return Locator{}, fmt.Errorf("%w: collection group %q", ErrInvalidPath, name)
	}
	l := Locator{kind: KindQuery, path: name, group: true}
	l.key = l.canonical()
	return l, nil
}

// MustDoc is like Doc but panics on an invalid path.
func MustDoc(path string) Locator {
	l, err := Doc(path)
	if err != nil {
		panic(err)
	}
	return l
}

// MustCollection is like Collection but panics on an invalid path.
func MustCollection(path string) Locator {
	l, err := Collection(path)
	if err != nil {
		panic(err)
	}
	return l
}

func splitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	segs := strings.Split(trimmed, "/")
	for _, s := range segs {
		if s == "" || s == "." || s == ".." {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segs, nil
}

// Where returns a copy of the query with an additional filter.
func (l Locator) Where(field, op string, value any) (Locator, error) {
	if l.kind != KindQuery {
		return Locator{}, ErrNotCollection
	}
	if field == "" {
		return Locator{}, fmt.Errorf("%w: empty field", ErrInvalidFilter)
	}
	if !validFilterOps[op] {
		return Locator{}, fmt.Errorf("%w: %q", ErrInvalidOperator, op)
	}
	value, err := normalizeValue(value)
	if err != nil {
		return Locator{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	if op == OpIn {
		if _, ok := value.([]any); !ok {
			return Locator{}, fmt.Errorf("%w: %q needs a list", ErrInvalidFilter, op)
		}
	}
	n := l.clone()
	n.filters = append(n.filters, Filter{Field: field, Op: op, Value: value})
	n.key = n.canonical()
	return n, nil
}

// OrderBy returns a copy of the query with an additional sort key.
func (l Locator) OrderBy(field, dir string) (Locator, error) {
	if l.kind != KindQuery {
		return Locator{}, ErrNotCollection
	}
	if dir == "" {
		dir = Asc
	}
	if dir != Asc && dir != Desc {
		return Locator{}, fmt.Errorf("%w: %q", ErrInvalidOrder, dir)
	}
	if field == "" {
		return Locator{}, fmt.Errorf("%w: empty field", ErrInvalidOrder)
	}
	n := l.clone()
	n.orders = append(n.orders, Order{Field: field, Dir: dir})
	n.key = n.canonical()
	return n, nil
}

// Limit returns a copy of the query capped at n documents. Zero means no cap.
func (l Locator) Limit(n int) (Locator, error) {
	if l.kind != KindQuery {
		return Locator{}, ErrNotCollection
	}
	if n < 0 {
		return Locator{}, ErrInvalidLimit
	}
	c := l.clone()
	c.limit = n
	c.key = c.canonical()
	return c, nil
}

func (l Locator) clone() Locator {
	n := l
	n.filters = append([]Filter(nil), l.filters...)
	n.orders = append([]Order(nil), l.orders...)
	return n
}

// Kind returns KindDoc or KindQuery.
func (l Locator) Kind() string { return l.kind }

// IsDoc reports whether the locator names a single document.
func (l Locator) IsDoc() bool { return l.kind == KindDoc }

// IsGroup reports whether the query spans a collection group.
func (l Locator) IsGroup() bool { return l.group }

// Filters returns a copy of the query filters in the order they were added.
func (l Locator) Filters() []Filter { return append([]Filter(nil), l.filters...) }

// Orders returns a copy of the query sort keys.
func (l Locator) Orders() []Order { return append([]Order(nil), l.orders...) }

// LimitN returns the document cap, zero when unbounded.
func (l Locator) LimitN() int { return l.limit }

// Path returns the canonical resource path: the document path, the
// collection path, or "collectionGroup:<name>" for group queries.
func (l Locator) Path() string {
	if l.group {
		return collectionGroupPrefix + l.path
	}
	return l.path
}

// Collection returns the collection name: the last segment of a collection
// path, the group name, or the parent collection of a document.
func (l Locator) Collection() string {
	segs := strings.Split(l.path, "/")
	if l.kind == KindDoc {
		return segs[len(segs)-2]
	}
	return segs[len(segs)-1]
}

// ID returns the document ID, or "" for queries.
func (l Locator) ID() string {
	if l.kind != KindDoc {
		return ""
	}
	return l.path[strings.LastIndex(l.path, "/")+1:]
}

// Parent returns the collection path holding a document, or "" for queries.
func (l Locator) Parent() string {
	if l.kind != KindDoc {
		return ""
	}
	return l.path[:strings.LastIndex(l.path, "/")]
}

// Key returns the canonical identity of the locator. Queries include their
// filters, orders and limit so distinct queries over one collection differ.
func (l Locator) Key() string { return l.key }

// IsZero reports whether the locator was never constructed.
func (l Locator) IsZero() bool { return l.kind == "" }

// Equal reports whether two locators have the same canonical key.
func (l Locator) Equal(o Locator) bool { return l.key == o.key }

func (l Locator) String() string { return l.key }

// queryShape is the key form of a query. Every component is JSON encoded.
type queryShape struct {
	Path    string            `json:"p"`
	Where   []json.RawMessage `json:"w,omitempty"`
	OrderBy []Order           `json:"o,omitempty"`
	Limit   int               `json:"l,omitempty"`
}

func (l Locator) canonical() string {
	if l.kind == KindDoc {
		return KindDoc + ":" + l.path
	}
	shape := queryShape{Path: l.path, OrderBy: l.orders, Limit: l.limit}
	// Filters are conjunctive, so their order does not change the result.
	for _, f := range l.filters {
		raw, _ := json.Marshal(f)
		shape.Where = append(shape.Where, raw)
	}
	sort.Slice(shape.Where, func(i, j int) bool {
		return string(shape.Where[i]) < string(shape.Where[j])
	})
	raw, _ := json.Marshal(shape)
	token := KindQuery
	if l.group {
		token = groupKeyToken
	}
	return token + ":" + string(raw)
}

// normalizeValue round-trips a filter value through JSON so comparisons
// see the same types documents decode to.
func normalizeValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// locatorJSON is the wire form of a Locator.
type locatorJSON struct {
	Kind    string   `json:"kind"`
	Path    string   `json:"path"`
	Group   bool     `json:"group,omitempty"`
	Where   []Filter `json:"where,omitempty"`
	OrderBy []Order  `json:"order_by,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// MarshalJSON encodes the locator in its wire form.
func (l Locator) MarshalJSON() ([]byte, error) {
	return json.Marshal(locatorJSON{
		Kind:    l.kind,
		Path:    l.path,
		Group:   l.group,
		Where:   l.filters,
		OrderBy: l.orders,
		Limit:   l.limit,
	})
}

// UnmarshalJSON rebuilds a locator through the validating constructors.
func (l *Locator) UnmarshalJSON(data []byte) error {
	var w locatorJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var (
		n   Locator
		err error
	)
	switch {
	case w.Kind == KindDoc:
		n, err = Doc(w.Path)
	case w.Kind == KindQuery && w.Group:
		n, err = CollectionGroup(w.Path)
	case w.Kind == KindQuery:
		n, err = Collection(w.Path)
	default:
		return fmt.Errorf("%w: unknown locator kind %q", ErrInvalidPath, w.Kind)
	}
	if err != nil {
		return err
	}
	if n.kind == KindQuery {
		for _, f := range w.Where {
			if n, err = n.Where(f.Field, f.Op, f.Value); err != nil {
				return err
			}
		}
		for _, o := range w.OrderBy {
			if n, err = n.OrderBy(o.Field, o.Dir); err != nil {
				return err
			}
		}
		if n, err = n.Limit(w.Limit); err != nil {
			return err
		}
	}
	*l = n
	return nil
}
