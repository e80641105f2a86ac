package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoc(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    string
		wantErr error
	}{
		{name: "agent document", path: "agents/u1", want: "agents/u1"},
		{name: "nested document", path: "agents/u1/properties/p1", want: "agents/u1/properties/p1"},
		{name: "leading and trailing slashes", path: "/agents/u1/", want: "agents/u1"},
		{name: "collection path", path: "agents", wantErr: ErrNotDocPath},
		{name: "empty", path: "", wantErr: ErrInvalidPath},
		{name: "empty segment", path: "agents//u1", wantErr: ErrInvalidPath},
		{name: "dot segment", path: "agents/..", wantErr: ErrInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := Doc(tt.path)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, loc.IsDoc())
			assert.Equal(t, tt.want, loc.Path())
			assert.Equal(t, "doc:"+tt.want, loc.Key())
		})
	}
}

func TestDocAccessors(t *testing.T) {
	loc := MustDoc("agents/u1/properties/p9")
	assert.Equal(t, "p9", loc.ID())
	assert.Equal(t, "agents/u1/properties", loc.Parent())
	assert.Equal(t, "properties", loc.Collection())
}

func TestCollectionGroupPath(t *testing.T) {
	loc, err := CollectionGroup("properties")
	require.NoError(t, err)
	assert.True(t, loc.IsGroup())
	assert.Equal(t, "collectionGroup:properties", loc.Path())
	assert.Equal(t, "properties", loc.Collection())

	_, err = CollectionGroup("a/b")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestLocatorImmutable(t *testing.T) {
	base := MustCollection("agents/u1/properties")
	active, err := base.Where("status", OpEqual, "active")
	require.NoError(t, err)
	sold, err := base.Where("status", OpEqual, "sold")
	require.NoError(t, err)

	assert.Empty(t, base.Filters())
	assert.Len(t, active.Filters(), 1)
	assert.NotEqual(t, active.Key(), sold.Key())
	assert.NotEqual(t, base.Key(), active.Key())
}

func TestQueryKeyDistinguishesShape(t *testing.T) {
	base := MustCollection("agents/u1/properties")
	ordered, err := base.OrderBy("price", Desc)
	require.NoError(t, err)
	limited, err := ordered.Limit(5)
	require.NoError(t, err)

	keys := map[string]bool{base.Key(): true, ordered.Key(): true, limited.Key(): true}
	assert.Len(t, keys, 3, "structurally distinct queries must not collide")
	assert.Equal(t, "agents/u1/properties", limited.Path())
}

func TestQueryKeyNoCollisions(t *testing.T) {
	group, err := CollectionGroup("properties")
	require.NoError(t, err)
	lookalike, err := Collection("collectionGroup:properties")
	require.NoError(t, err)
	assert.NotEqual(t, group.Key(), lookalike.Key(), "group and collection keys must differ")

	base := MustCollection("agents/u1/properties")
	two, _ := base.Where("a", OpEqual, "x")
	two, _ = two.Where("b", OpEqual, "y")
	forged, _ := base.Where(`a == "x"|where:b`, OpEqual, "y")
	assert.NotEqual(t, two.Key(), forged.Key(), "field names must not forge a second filter")

	ordered, _ := base.OrderBy("price", Desc)
	forgedOrder, _ := base.OrderBy("price desc|order:x", Asc)
	assert.NotEqual(t, ordered.Key(), forgedOrder.Key())

	doc := MustDoc("agents/u1")
	assert.NotEqual(t, doc.Key(), MustCollection("agents").Key())
}

func TestQueryKeyFilterOrderInsensitive(t *testing.T) {
	base := MustCollection("agents/u1/properties")
	a, _ := base.Where("status", OpEqual, "active")
	a, _ = a.Where("price", OpLess, 500000)
	b, _ := base.Where("price", OpLess, 500000)
	b, _ = b.Where("status", OpEqual, "active")
	assert.True(t, a.Equal(b))
}

func TestWhereValidation(t *testing.T) {
	base := MustCollection("agents/u1/properties")

	_, err := base.Where("status", "~=", "x")
	assert.ErrorIs(t, err, ErrInvalidOperator)

	_, err = base.Where("status", OpIn, "active")
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, err = base.Where("", OpEqual, "x")
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, err = MustDoc("agents/u1").Where("x", OpEqual, 1)
	assert.ErrorIs(t, err, ErrNotCollection)

	_, err = base.Limit(-1)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = base.OrderBy("price", "sideways")
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestLocatorJSONRoundTrip(t *testing.T) {
	q, err := CollectionGroup("properties")
	require.NoError(t, err)
	q, _ = q.Where("status", OpIn, []string{"active", "rented"})
	q, _ = q.OrderBy("price", Desc)
	q, _ = q.Limit(10)

	for _, loc := range []Locator{q, MustDoc("agents/u1")} {
		raw, err := json.Marshal(loc)
		require.NoError(t, err)

		var back Locator
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.True(t, loc.Equal(back), "got %s want %s", back.Key(), loc.Key())
		assert.Equal(t, loc.Path(), back.Path())
	}
}

func TestLocatorUnmarshalRejectsBadKind(t *testing.T) {
	var loc Locator
	err := json.Unmarshal([]byte(`{"kind":"table","path":"agents"}`), &loc)
	assert.True(t, errors.Is(err, ErrInvalidPath))
}

func TestAccessErrorUnwrap(t *testing.T) {
	err := error(&AccessError{Op: OpList, Path: "agents/u1/properties", Code: CodePermissionDenied})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, "list agents/u1/properties: permission-denied", err.Error())

	assert.ErrorIs(t, ErrorForCode(CodeUnavailable, "offline"), ErrUnavailable)
	assert.ErrorIs(t, ErrorForCode("bogus", ""), ErrAccessFailed)
}
