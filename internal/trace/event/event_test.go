package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressKeyRoundTrip(t *testing.T) {
	addrs := []Address{{1}, {1, 2}, {0, 4294967295, 7}}
	for _, addr := range addrs {
		assert.True(t, addr.Equal(addr.Key().Address()), addr.String())
	}
	assert.NotEqual(t, Address{1, 2}.Key(), Address{1, 2, 0}.Key())
}

func TestAddressParent(t *testing.T) {
	assert.Equal(t, Address{1}, Address{1, 2}.Parent())
	assert.Empty(t, Address{1}.Parent())
	assert.Nil(t, Address(nil).Parent())

	// appending to a parent must not clobber the child
	child := Address{1, 2, 3}
	p := append(child.Parent(), 9)
	assert.Equal(t, Address{1, 2, 3}, child)
	assert.Equal(t, Address{1, 2, 9}, p)
}

func TestAddressCompare(t *testing.T) {
	tests := []struct {
		a, b Address
		want int
	}{
		{Address{1}, Address{1}, 0},
		{Address{1}, Address{1, 1}, -1},
		{Address{1, 2}, Address{1, 10}, -1},
		{Address{2}, Address{1, 9}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.a.String()+" vs "+tt.b.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
			assert.Equal(t, -tt.want, tt.b.Compare(tt.a))
		})
	}
}

func TestAddressPrefixes(t *testing.T) {
	assert.Nil(t, Address{1}.Prefixes())
	assert.Equal(t, []Address{{1}, {1, 2}}, Address{1, 2, 3}.Prefixes())
	assert.True(t, Address{1}.IsStrictPrefixOf(Address{1, 1}))
	assert.False(t, Address{1}.IsStrictPrefixOf(Address{1}))
	assert.False(t, Address{2}.IsStrictPrefixOf(Address{1, 2}))
}

func TestValidate(t *testing.T) {
	ep := Endpoint{Addr: Address{1, 1}}

	require.NoError(t, Operator(0, 1, Address{1}, "Map").Validate())
	require.NoError(t, Channel(0, 1, 3, ep, ep).Validate())
	require.NoError(t, Shutdown(0, 10).Validate())

	assert.ErrorIs(t, Start(0, 1, nil).Validate(), ErrEmptyAddress)
	assert.ErrorIs(t, Channel(0, 1, 3, Endpoint{}, ep).Validate(), ErrEmptyAddress)
	assert.ErrorIs(t, Event{Kind: KindUnknown}.Validate(), ErrUnknownKind)
	assert.ErrorIs(t, Stop(0, -5, Address{1}).Validate(), ErrNegativeTime)
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		assert.Equal(t, k, ParseKind(k.String()))
	}
	assert.Equal(t, KindUnknown, ParseKind("bogus"))
}
