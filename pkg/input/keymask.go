package input

import (
	"math/bits"
	"strconv"
	"strings"
)

// KeyMask is the set of pressed keys, one bit per legacy key code.
// KeyMask is comparable and can be used as a map key.
type KeyMask [4]uint64

// NewKeyMask returns the mask with every key in keys set.
func NewKeyMask(keys ...Key) KeyMask {
	var m KeyMask
	for _, k := range keys {
		m = m.With(k, true)
	}
	return m
}

// Has reports whether k is set.
func (m KeyMask) Has(k Key) bool {
	c := k.Code()
	return m[c/64]&(1<<(c%64)) != 0
}

// With returns a copy of m with k set to state.
func (m KeyMask) With(k Key, state bool) KeyMask {
	c := k.Code()
	if state {
		m[c/64] |= 1 << (c % 64)
	} else {
		m[c/64] &^= 1 << (c % 64)
	}
	return m
}

// IsEmpty reports whether no key is set.
func (m KeyMask) IsEmpty() bool {
	return m == KeyMask{}
}

// Len returns the number of keys set.
func (m KeyMask) Len() int {
	n := 0
	for _, w := range m {
		n += bits.OnesCount64(w)
	}
	return n
}

// String lists the set key codes, for diagnostics.
func (m KeyMask) String() string {
	var codes []string
	for i, w := range m {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			codes = append(codes, strconv.Itoa(i*64+b))
			w &^= 1 << b
		}
	}
	return "{" + strings.Join(codes, " ") + "}"
}
