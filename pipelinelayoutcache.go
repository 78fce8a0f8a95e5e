package vkb

// Binding model shared by the whole binding layer: three descriptor sets are
// bound at a time, one per descriptor type. Uniform buffers are visible to
// all shader stages; sampler bindings carry per-stage usage derived from the
// program; a single input attachment binding serves subpass reads.
const (
	UniformBufferBindingCount = 10
	SamplerBindingCount       = 62
	InputAttachmentCount      = 1

	ShaderModuleCount    = 2
	VertexAttributeCount = 16

	// DescriptorTypeCount is the number of descriptor sets bound
	// simultaneously: uniform buffers, combined image samplers, input
	// attachments.
	DescriptorTypeCount = 3

	InitialDescriptorSetPoolSize = 512
)

// PipelineLayoutKey flags, per sampler binding, whether the binding is used
// and by which stages. Bit b is vertex-stage usage of sampler binding b, bit
// b+SamplerBindingCount is fragment-stage usage. Two programs with the same
// usage bitset share one pipeline layout, and with it the recycling arenas
// for descriptor sets of that shape.
type PipelineLayoutKey = UsageFlags

// SamplerUsage returns flags with the usage bits for the given sampler
// binding set for each stage in stages.
func SamplerUsage(flags UsageFlags, binding uint32, stages ShaderStageFlags) UsageFlags {
	if stages&StageVertex != 0 {
		flags = flags.Set(binding)
	}
	if stages&StageFragment != 0 {
		flags = flags.Set(binding + SamplerBindingCount)
	}
	return flags
}

// DisableSamplerUsage clears both stage bits for the given sampler binding.
func DisableSamplerUsage(flags UsageFlags, binding uint32) UsageFlags {
	flags = flags.Clear(binding)
	flags = flags.Clear(binding + SamplerBindingCount)
	return flags
}

// samplerStages recovers the stage flags for one sampler binding from a
// layout key.
func samplerStages(key PipelineLayoutKey, binding uint32) ShaderStageFlags {
	var stages ShaderStageFlags
	if key.Test(binding) {
		stages |= StageVertex
	}
	if key.Test(binding + SamplerBindingCount) {
		stages |= StageFragment
	}
	return stages
}

// pipelineLayoutEntry bundles the native pipeline layout with the three
// descriptor set layouts it was built from and the per-type recycling
// arenas. The arenas start empty and are populated as descriptor bundles
// age out; they always have equal lengths, one recyclable bundle per
// position.
type pipelineLayoutEntry struct {
	handle     PipelineLayout
	lastUsed   Timestamp
	setLayouts [DescriptorTypeCount]DescriptorSetLayout
	arenas     [DescriptorTypeCount][]DescriptorSet
}

// PipelineLayoutCache maps sampler usage bitsets to pipeline layouts. It is
// shared by PipelineCache (which needs the pipeline layout handle) and
// DescriptorSetCache (which needs the descriptor set layout handles and the
// arenas), which is why it is a separate component.
type PipelineLayoutCache struct {
	driver  IDriver
	layouts map[PipelineLayoutKey]*pipelineLayoutEntry
}

func NewPipelineLayoutCache(driver IDriver) *PipelineLayoutCache {
	return &PipelineLayoutCache{
		driver:  driver,
		layouts: make(map[PipelineLayoutKey]*pipelineLayoutEntry),
	}
}

// getOrCreate returns the entry for key, building the three descriptor set
// layouts and the pipeline layout on first use. Nothing is inserted into the
// map if any native creation fails.
func (c *PipelineLayoutCache) getOrCreate(key PipelineLayoutKey, now Timestamp) (*pipelineLayoutEntry, error) {
	if entry, ok := c.layouts[key]; ok {
		entry.lastUsed = now
		return entry, nil
	}

	var setLayouts [DescriptorTypeCount]DescriptorSetLayout
	destroyPartial := func() {
		for _, l := range setLayouts {
			if l != 0 {
				c.driver.DestroyDescriptorSetLayout(l)
			}
		}
	}

	ubufferBindings := make([]DescriptorSetLayoutBinding, UniformBufferBindingCount)
	for i := range ubufferBindings {
		ubufferBindings[i] = DescriptorSetLayoutBinding{
			Binding: uint32(i),
			Type:    DescriptorTypeUniformBuffer,
			Count:   1,
			Stages:  StageVertex | StageFragment,
		}
	}

	samplerBindings := make([]DescriptorSetLayoutBinding, 0, SamplerBindingCount)
	for binding := uint32(0); binding < SamplerBindingCount; binding++ {
		if stages := samplerStages(key, binding); stages != 0 {
			samplerBindings = append(samplerBindings, DescriptorSetLayoutBinding{
				Binding: binding,
				Type:    DescriptorTypeCombinedImageSampler,
				Count:   1,
				Stages:  stages,
			})
		}
	}

	attachmentBindings := make([]DescriptorSetLayoutBinding, InputAttachmentCount)
	for i := range attachmentBindings {
		attachmentBindings[i] = DescriptorSetLayoutBinding{
			Binding: uint32(i),
			Type:    DescriptorTypeInputAttachment,
			Count:   1,
			Stages:  StageFragment,
		}
	}

	var err error
	for i, bindings := range [][]DescriptorSetLayoutBinding{
		ubufferBindings, samplerBindings, attachmentBindings,
	} {
		setLayouts[i], err = c.driver.CreateDescriptorSetLayout(bindings)
		if err != nil {
			destroyPartial()
			return nil, err
		}
	}

	handle, err := c.driver.CreatePipelineLayout(setLayouts[:])
	if err != nil {
		destroyPartial()
		return nil, err
	}

	entry := &pipelineLayoutEntry{
		handle:     handle,
		lastUsed:   now,
		setLayouts: setLayouts,
	}
	c.layouts[key] = entry
	Logger().Debug("created pipeline layout", "samplers", key.Count())
	return entry, nil
}

// clearArenas empties the recycling arenas of every layout. Called when the
// descriptor pool is replaced: sets allocated from the old pool must not be
// handed out again.
func (c *PipelineLayoutCache) clearArenas() {
	for _, entry := range c.layouts {
		for i := range entry.arenas {
			entry.arenas[i] = nil
		}
	}
}

// Terminate destroys every cached layout object. Descriptor sets sitting in
// arenas are freed implicitly when the descriptor pool they came from is
// destroyed.
func (c *PipelineLayoutCache) Terminate() {
	for key, entry := range c.layouts {
		c.driver.DestroyPipelineLayout(entry.handle)
		for _, l := range entry.setLayouts {
			c.driver.DestroyDescriptorSetLayout(l)
		}
		delete(c.layouts, key)
	}
}
