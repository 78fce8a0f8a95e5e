package vkb

import "testing"

func TestUsageFlags(t *testing.T) {
	var f UsageFlags

	if !f.None() {
		t.Error("zero value should be empty")
	}

	f = f.Set(0).Set(63).Set(64).Set(123)
	for _, b := range []uint32{0, 63, 64, 123} {
		if !f.Test(b) {
			t.Errorf("bit %d should be set", b)
		}
	}
	if f.Test(1) || f.Test(65) {
		t.Error("unset bits should read as clear")
	}
	if f.Count() != 4 {
		t.Errorf("count = %d, want 4", f.Count())
	}

	f = f.Clear(63).Clear(64)
	if f.Test(63) || f.Test(64) {
		t.Error("cleared bits should read as clear")
	}
	if f.Count() != 2 {
		t.Errorf("count after clear = %d, want 2", f.Count())
	}
}

func TestSamplerUsage(t *testing.T) {
	var key PipelineLayoutKey

	key = SamplerUsage(key, 5, StageVertex)
	key = SamplerUsage(key, 7, StageVertex|StageFragment)

	if got := samplerStages(key, 5); got != StageVertex {
		t.Errorf("binding 5 stages = %#x, want vertex", got)
	}
	if got := samplerStages(key, 7); got != StageVertex|StageFragment {
		t.Errorf("binding 7 stages = %#x, want vertex|fragment", got)
	}
	if got := samplerStages(key, 6); got != 0 {
		t.Errorf("binding 6 stages = %#x, want none", got)
	}

	key = DisableSamplerUsage(key, 7)
	if got := samplerStages(key, 7); got != 0 {
		t.Errorf("binding 7 after disable = %#x, want none", got)
	}
	if got := samplerStages(key, 5); got != StageVertex {
		t.Error("disabling one binding must not touch another")
	}
}

func TestUsageFlagsAsMapKey(t *testing.T) {
	a := SamplerUsage(UsageFlags{}, 3, StageFragment)
	b := SamplerUsage(UsageFlags{}, 3, StageFragment)

	m := map[PipelineLayoutKey]int{a: 1}
	if m[b] != 1 {
		t.Error("equal usage flags must hash to the same entry")
	}
}
