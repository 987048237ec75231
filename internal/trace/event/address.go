package event

import (
	"encoding/binary"
	"strconv"
	"strings"
)

// Address identifies a node's position in the scope hierarchy. Each prefix of
// length k is the address of the enclosing subgraph at depth k.
type Address []uint32

// Key is a comparable form of an Address, usable as a map key.
type Key string

// Key returns the canonical map key for the address.
func (a Address) Key() Key {
	buf := make([]byte, 4*len(a))
	for i, v := range a {
		binary.BigEndian.PutUint32(buf[4*i:], v)
	}
	return Key(buf)
}

// Address converts the key back into an Address.
func (k Key) Address() Address {
	n := len(k) / 4
	addr := make(Address, n)
	for i := 0; i < n; i++ {
		addr[i] = binary.BigEndian.Uint32([]byte(k[4*i : 4*i+4]))
	}
	return addr
}

// Parent returns the address with its last element removed. The parent of a
// top-level address is the empty address.
func (a Address) Parent() Address {
	if len(a) == 0 {
		return nil
	}
	return a[:len(a)-1 : len(a)-1]
}

// IsTopLevel reports whether the address belongs to the root scope.
func (a Address) IsTopLevel() bool {
	return len(a) == 1
}

// Equal reports whether both addresses denote the same entity.
func (a Address) Equal(b Address) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Compare orders addresses lexicographically, a prefix before its extensions.
func (a Address) Compare(b Address) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// IsStrictPrefixOf reports whether a is a proper ancestor of b.
func (a Address) IsStrictPrefixOf(b Address) bool {
	if len(a) >= len(b) {
		return false
	}
	return a.Equal(b[:len(a)])
}

// Prefixes returns every proper non-empty prefix of the address, shortest
// first.
func (a Address) Prefixes() []Address {
	if len(a) < 2 {
		return nil
	}
	out := make([]Address, 0, len(a)-1)
	for i := 1; i < len(a); i++ {
		out = append(out, a[:i:i])
	}
	return out
}

// Clone returns a copy that does not alias the receiver.
func (a Address) Clone() Address {
	if a == nil {
		return nil
	}
	out := make(Address, len(a))
	copy(out, a)
	return out
}

func (a Address) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range a {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatUint(uint64(v), 10))
	}
	b.WriteByte(']')
	return b.String()
}
