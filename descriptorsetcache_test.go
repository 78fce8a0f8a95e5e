package vkb

import "testing"

func TestBindDescriptorsCreatesOnce(t *testing.T) {
	driver, _, _, dsc := newTestCaches()

	dsc.BindUniformBuffer(0, 77, 0, 256)
	if err := dsc.BindDescriptors(1); err != nil {
		t.Fatal(err)
	}
	if driver.bundlesAllocated != 1 || driver.bindDescriptorCalls != 1 {
		t.Fatalf("allocated/bound = %d/%d, want 1/1",
			driver.bundlesAllocated, driver.bindDescriptorCalls)
	}
	if driver.poolsCreated != 1 {
		t.Errorf("pools = %d, want 1", driver.poolsCreated)
	}
	if len(driver.lastBoundSets) != DescriptorTypeCount {
		t.Errorf("bound %d sets, want %d", len(driver.lastBoundSets), DescriptorTypeCount)
	}

	// Identical requirements on the same command buffer: no driver calls.
	if err := dsc.BindDescriptors(1); err != nil {
		t.Fatal(err)
	}
	if driver.bundlesAllocated != 1 || driver.bindDescriptorCalls != 1 {
		t.Errorf("allocated/bound after repeat = %d/%d, want 1/1",
			driver.bundlesAllocated, driver.bindDescriptorCalls)
	}
}

// A first draw whose requirements happen to equal the zero value must still
// allocate and bind; the shadow state alone is not proof of a prior bind.
func TestBindDescriptorsFirstDrawEmptyKey(t *testing.T) {
	driver, _, _, dsc := newTestCaches()

	if err := dsc.BindDescriptors(1); err != nil {
		t.Fatal(err)
	}
	if driver.bundlesAllocated != 1 || driver.bindDescriptorCalls != 1 {
		t.Errorf("allocated/bound = %d/%d, want 1/1",
			driver.bundlesAllocated, driver.bindDescriptorCalls)
	}
}

func TestDescriptorWrites(t *testing.T) {
	driver, _, _, dsc := newTestCaches()

	dsc.SetDummyTexture(55)
	dsc.BindUniformBuffer(2, 77, 64, WholeSize)
	dsc.BindSamplers(
		[]DescriptorImageInfo{{Sampler: 8, ImageView: 9, ImageLayout: ImageLayoutShaderReadOnly}},
		nil,
		SamplerUsage(UsageFlags{}, 0, StageFragment))
	if err := dsc.BindDescriptors(1); err != nil {
		t.Fatal(err)
	}

	// Every uniform slot is written (dummy buffer for the unused ones),
	// one sampler slot is used, and the input attachment slot gets the
	// dummy target.
	want := UniformBufferBindingCount + 1 + InputAttachmentCount
	if len(driver.lastWrites) != want {
		t.Fatalf("writes = %d, want %d", len(driver.lastWrites), want)
	}

	var dummies, whole int
	for _, w := range driver.lastWrites {
		if w.Type != DescriptorTypeUniformBuffer {
			continue
		}
		if w.Binding == 2 {
			if w.Buffer.Buffer != 77 || w.Buffer.Offset != 64 {
				t.Errorf("binding 2 write = %+v", w.Buffer)
			}
			if w.Buffer.Range == rangeWhole {
				whole++
			}
		} else if w.Buffer.Buffer != 0 {
			dummies++
		}
	}
	if whole != 1 {
		t.Error("WholeSize should translate to the native whole-size range")
	}
	if dummies != UniformBufferBindingCount-1 {
		t.Errorf("dummy uniform writes = %d, want %d", dummies, UniformBufferBindingCount-1)
	}
}

func TestGetUniformBufferBinding(t *testing.T) {
	_, _, _, dsc := newTestCaches()

	dsc.BindUniformBuffer(3, 77, 128, 512)
	buffer, offset, size := dsc.GetUniformBufferBinding(3)
	if buffer != 77 || offset != 128 || size != 512 {
		t.Errorf("binding = %d/%d/%d", buffer, offset, size)
	}
}

func TestDescriptorSetRecycling(t *testing.T) {
	driver, _, _, dsc := newTestCaches()

	dsc.BindUniformBuffer(0, 77, 0, 256)
	if err := dsc.BindDescriptors(1); err != nil {
		t.Fatal(err)
	}

	// Age the bundle out; its sets go to the layout's arenas.
	for i := 0; i <= MaxCommandBufferAge; i++ {
		flush(CommandBuffer(2+i), dsc)
	}
	if dsc.arenasCount != 1 {
		t.Fatalf("arena bundles = %d, want 1", dsc.arenasCount)
	}

	// A different key with the same layout reuses the recycled sets
	// instead of allocating.
	dsc.BindUniformBuffer(0, 88, 0, 256)
	if err := dsc.BindDescriptors(10); err != nil {
		t.Fatal(err)
	}
	if driver.bundlesAllocated != 1 {
		t.Errorf("allocated = %d, want 1 (arena reuse)", driver.bundlesAllocated)
	}
	if driver.updates != 2 {
		t.Errorf("updates = %d, want 2 (recycled sets must be rewritten)", driver.updates)
	}
	if dsc.arenasCount != 0 {
		t.Errorf("arena bundles = %d, want 0", dsc.arenasCount)
	}
}

func TestDescriptorPoolGrowth(t *testing.T) {
	driver, _, _, dsc := newTestCaches()
	dsc.poolSize = 1

	dsc.BindUniformBuffer(0, 77, 0, 256)
	if err := dsc.BindDescriptors(1); err != nil {
		t.Fatal(err)
	}
	if driver.lastPoolMaxSets != 1*DescriptorTypeCount {
		t.Errorf("initial pool maxSets = %d", driver.lastPoolMaxSets)
	}

	// Second distinct key overflows the one-group pool.
	dsc.BindUniformBuffer(0, 88, 0, 256)
	if err := dsc.BindDescriptors(1); err != nil {
		t.Fatal(err)
	}
	if driver.poolsCreated != 2 {
		t.Fatalf("pools created = %d, want 2", driver.poolsCreated)
	}
	if driver.lastPoolMaxSets != 2*DescriptorTypeCount {
		t.Errorf("grown pool maxSets = %d, want %d",
			driver.lastPoolMaxSets, 2*DescriptorTypeCount)
	}
	if len(dsc.extinctPools) != 1 || len(dsc.extinctBundles) != 1 {
		t.Fatalf("extinct pools/bundles = %d/%d, want 1/1",
			len(dsc.extinctPools), len(dsc.extinctBundles))
	}
	if driver.poolsDestroyed != 0 {
		t.Fatal("old pool destroyed while potentially in flight")
	}

	// Once nothing can reference the old pool it goes away.
	for i := 0; i <= MaxCommandBufferAge; i++ {
		flush(CommandBuffer(2+i), dsc)
	}
	if driver.poolsDestroyed != 1 {
		t.Errorf("pools destroyed = %d, want 1", driver.poolsDestroyed)
	}
	if len(dsc.extinctBundles) != 0 {
		t.Errorf("extinct bundles = %d, want 0", len(dsc.extinctBundles))
	}
}

func TestUnbindUniformBuffer(t *testing.T) {
	driver, _, _, dsc := newTestCaches()

	dsc.BindUniformBuffer(0, 77, 0, 256)
	if err := dsc.BindDescriptors(1); err != nil {
		t.Fatal(err)
	}

	dsc.UnbindUniformBuffer(77)

	if buffer, _, _ := dsc.GetUniformBufferBinding(0); buffer != 0 {
		t.Error("requirement slot should be cleared")
	}
	if len(dsc.descriptorSets) != 0 {
		t.Error("cached bundles embedding the buffer should be purged")
	}
	if len(dsc.extinctBundles) != 1 {
		t.Error("purged bundles must linger until aged out")
	}

	// The purged sets are never handed out again: a new bind allocates.
	dsc.BindUniformBuffer(0, 77, 0, 256)
	if err := dsc.BindDescriptors(1); err != nil {
		t.Fatal(err)
	}
	if driver.bundlesAllocated != 2 {
		t.Errorf("allocated = %d, want 2", driver.bundlesAllocated)
	}
}

func TestUnbindImageView(t *testing.T) {
	_, _, _, dsc := newTestCaches()

	usage := SamplerUsage(UsageFlags{}, 0, StageFragment)
	dsc.BindSamplers(
		[]DescriptorImageInfo{{Sampler: 8, ImageView: 9, ImageLayout: ImageLayoutShaderReadOnly}},
		nil, usage)
	if err := dsc.BindDescriptors(1); err != nil {
		t.Fatal(err)
	}

	dsc.UnbindImageView(9)

	if dsc.requirements.Samplers[0].ImageView != 0 {
		t.Error("sampler requirement should be cleared")
	}
	if len(dsc.descriptorSets) != 0 {
		t.Error("cached bundles embedding the view should be purged")
	}
	if dsc.bound != (DescriptorKey{}) {
		t.Error("shadow state referencing the view should be reset")
	}
}

func TestDescriptorResourceLifetime(t *testing.T) {
	driver, _, _, dsc := newTestCaches()

	bo, err := NewBufferObject(driver, dsc, 256, BufferUsageUniform)
	if err != nil {
		t.Fatal(err)
	}
	dsc.BindUniformBufferObject(0, bo, 0, 256)
	if err := dsc.BindDescriptors(1); err != nil {
		t.Fatal(err)
	}

	// The engine lets go, but the bundle still references the buffer.
	bo.Destroy()
	if driver.buffersDestroyed != 0 {
		t.Fatal("buffer destroyed while referenced by a live bundle")
	}

	for i := 0; i <= MaxCommandBufferAge; i++ {
		flush(CommandBuffer(2+i), dsc)
	}
	if driver.buffersDestroyed != 1 {
		t.Errorf("buffers destroyed = %d, want 1", driver.buffersDestroyed)
	}
}

func TestDescriptorSetCacheTerminate(t *testing.T) {
	driver, layouts, _, dsc := newTestCaches()

	dsc.BindUniformBuffer(0, 77, 0, 256)
	if err := dsc.BindDescriptors(1); err != nil {
		t.Fatal(err)
	}

	dsc.Terminate()
	layouts.Terminate()

	if driver.poolsDestroyed != 1 {
		t.Errorf("pools destroyed = %d, want 1", driver.poolsDestroyed)
	}
	// The dummy buffer is the cache's own allocation.
	if driver.buffersDestroyed != 1 {
		t.Errorf("buffers destroyed = %d, want 1", driver.buffersDestroyed)
	}
}
