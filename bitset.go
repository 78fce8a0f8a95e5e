package vkb

import "math/bits"

// UsageFlags is a 128-bit set used to describe which sampler bindings a
// program uses and in which shader stages. It is a plain comparable value so
// it can double as a map key (see PipelineLayoutKey).
type UsageFlags struct {
	lo, hi uint64
}

// Set returns a copy of f with the given bit set.
func (f UsageFlags) Set(bit uint32) UsageFlags {
	if bit < 64 {
		f.lo |= 1 << bit
	} else {
		f.hi |= 1 << (bit - 64)
	}
	return f
}

// Clear returns a copy of f with the given bit cleared.
func (f UsageFlags) Clear(bit uint32) UsageFlags {
	if bit < 64 {
		f.lo &^= 1 << bit
	} else {
		f.hi &^= 1 << (bit - 64)
	}
	return f
}

// Test reports whether the given bit is set.
func (f UsageFlags) Test(bit uint32) bool {
	if bit < 64 {
		return f.lo&(1<<bit) != 0
	}
	return f.hi&(1<<(bit-64)) != 0
}

// None reports whether no bit is set.
func (f UsageFlags) None() bool {
	return f.lo == 0 && f.hi == 0
}

// Count returns the number of set bits.
func (f UsageFlags) Count() int {
	return bits.OnesCount64(f.lo) + bits.OnesCount64(f.hi)
}
