package vkb

import "testing"

func TestPipelineLayoutShape(t *testing.T) {
	driver, layouts, _, _ := newTestCaches()

	key := SamplerUsage(UsageFlags{}, 4, StageVertex)
	key = SamplerUsage(key, 9, StageVertex|StageFragment)

	entry, err := layouts.getOrCreate(key, 0)
	if err != nil {
		t.Fatal(err)
	}
	if entry.handle == 0 {
		t.Fatal("no pipeline layout handle")
	}
	if len(driver.setLayoutBindings) != DescriptorTypeCount {
		t.Fatalf("set layouts = %d, want %d", len(driver.setLayoutBindings), DescriptorTypeCount)
	}

	ubuffers := driver.setLayoutBindings[0]
	if len(ubuffers) != UniformBufferBindingCount {
		t.Errorf("uniform bindings = %d, want %d", len(ubuffers), UniformBufferBindingCount)
	}
	for _, b := range ubuffers {
		if b.Stages != StageVertex|StageFragment || b.Type != DescriptorTypeUniformBuffer {
			t.Errorf("uniform binding %d = %+v", b.Binding, b)
		}
	}

	// Only the used sampler bindings appear, each with its own stages.
	samplers := driver.setLayoutBindings[1]
	if len(samplers) != 2 {
		t.Fatalf("sampler bindings = %d, want 2", len(samplers))
	}
	if samplers[0].Binding != 4 || samplers[0].Stages != StageVertex {
		t.Errorf("sampler binding 0 = %+v", samplers[0])
	}
	if samplers[1].Binding != 9 || samplers[1].Stages != StageVertex|StageFragment {
		t.Errorf("sampler binding 1 = %+v", samplers[1])
	}

	attachments := driver.setLayoutBindings[2]
	if len(attachments) != InputAttachmentCount {
		t.Fatalf("attachment bindings = %d", len(attachments))
	}
	if attachments[0].Stages != StageFragment || attachments[0].Type != DescriptorTypeInputAttachment {
		t.Errorf("attachment binding = %+v", attachments[0])
	}
}

func TestPipelineLayoutCached(t *testing.T) {
	driver, layouts, _, _ := newTestCaches()

	key := SamplerUsage(UsageFlags{}, 0, StageFragment)
	a, err := layouts.getOrCreate(key, 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := layouts.getOrCreate(key, 5)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("same key should return the same entry")
	}
	if b.lastUsed != 5 {
		t.Error("hit should refresh lastUsed")
	}
	if driver.pipelineLayoutsCreated != 1 {
		t.Errorf("layouts created = %d, want 1", driver.pipelineLayoutsCreated)
	}

	other := SamplerUsage(UsageFlags{}, 1, StageFragment)
	if _, err := layouts.getOrCreate(other, 6); err != nil {
		t.Fatal(err)
	}
	if driver.pipelineLayoutsCreated != 2 {
		t.Errorf("layouts created = %d, want 2", driver.pipelineLayoutsCreated)
	}
}

func TestClearArenas(t *testing.T) {
	_, layouts, _, _ := newTestCaches()

	entry, err := layouts.getOrCreate(UsageFlags{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i := range entry.arenas {
		entry.arenas[i] = append(entry.arenas[i], DescriptorSet(100+i))
	}

	layouts.clearArenas()
	for i := range entry.arenas {
		if len(entry.arenas[i]) != 0 {
			t.Fatalf("arena %d not cleared", i)
		}
	}
}
