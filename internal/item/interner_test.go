package item

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterner_InternAssignsStableIDs(t *testing.T) {
	in := NewInterner()

	idA := in.Intern("bread")
	idB := in.Intern("milk")
	idAAgain := in.Intern("bread")

	assert.Equal(t, idA, idAAgain)
	assert.NotEqual(t, idA, idB)
	assert.Equal(t, 2, in.Len())
}

func TestInterner_LookupRoundTrips(t *testing.T) {
	in := NewInterner()
	id := in.Intern("eggs")

	name, ok := in.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, "eggs", name)

	gotID, ok := in.LookupID("eggs")
	require.True(t, ok)
	assert.Equal(t, id, gotID)
}

func TestInterner_LookupUnknown(t *testing.T) {
	in := NewInterner()
	_, ok := in.Lookup(ID(99))
	assert.False(t, ok)

	_, ok = in.LookupID("nope")
	assert.False(t, ok)
}

func TestInterner_DrainNewReturnsDeltaOnly(t *testing.T) {
	in := NewInterner()
	in.Intern("a")
	in.Intern("b")

	first := in.DrainNew()
	assert.Equal(t, []ID{1, 2}, first)

	// No new items since the drain.
	assert.Nil(t, in.DrainNew())

	in.Intern("c")
	// Re-interning an existing name must not appear in the delta.
	in.Intern("a")

	second := in.DrainNew()
	assert.Equal(t, []ID{3}, second)
}
