//go:build debug

package vkb

import "fmt"

// assertInvariant panics when an internal consistency check fails. These
// checks guard conditions that indicate a bug in the cache itself, such as
// arena length mismatches or negative reference counts, never conditions a
// caller can trigger through the public API.
func assertInvariant(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("vkb: invariant violated: "+format, args...))
	}
}
