package vkb

// DescriptorImageInfo names a combined image sampler or input attachment
// binding: which sampler, which image view, and the layout the image will be
// in at draw time.
type DescriptorImageInfo struct {
	Sampler     Sampler
	ImageView   ImageView
	ImageLayout ImageLayout
}

// DescriptorKey represents all state that comprises a bound descriptor set
// bundle. An unused slot is the zero value, so two draws that leave the same
// slots empty produce equal keys. Like PipelineKey it is a plain comparable
// value.
type DescriptorKey struct {
	UniformBuffers       [UniformBufferBindingCount]Buffer
	Samplers             [SamplerBindingCount]DescriptorImageInfo
	InputAttachments     [InputAttachmentCount]DescriptorImageInfo
	UniformBufferOffsets [UniformBufferBindingCount]uint32
	UniformBufferSizes   [UniformBufferBindingCount]uint32
}

// descriptorCacheEntry is a group of descriptor sets bound simultaneously,
// one per descriptor type. The id ties the entry to the resource set that
// keeps its referenced buffers and textures alive.
type descriptorCacheEntry struct {
	handles  [DescriptorTypeCount]DescriptorSet
	lastUsed Timestamp
	layout   PipelineLayoutKey
	id       uint32
}

// dummyBufferSize is the size of the placeholder buffer written into unused
// uniform slots so that no descriptor is ever left unwritten.
const dummyBufferSize = 16

// DescriptorSetCache maps DescriptorKeys to descriptor set bundles. Bundles
// are allocated from a single growable pool and recycled through the
// per-layout arenas once the GPU can no longer be using them.
type DescriptorSetCache struct {
	driver  IDriver
	layouts *PipelineLayoutCache

	descriptorSets map[DescriptorKey]*descriptorCacheEntry
	resources      map[uint32]*ResourceSet
	entryCount     uint32
	currentTime    Timestamp

	// poolSize is the pool's capacity in set groups; multiply by
	// DescriptorTypeCount for the true set count. The number of groups
	// already allocated from the pool is len(descriptorSets) (active)
	// plus arenasCount (dormant).
	pool        DescriptorPool
	poolSize    uint32
	arenasCount uint32

	// After a growth event the old pool and every live bundle move here,
	// kept until no pending submission can reference them.
	extinctPools   []DescriptorPool
	extinctBundles []*descriptorCacheEntry

	requirements      DescriptorKey
	layoutRequirement PipelineLayoutKey
	bound             DescriptorKey

	// Resources named by the requirements, waiting to be transferred to
	// the entry that gets bound. Cleared on every command buffer change.
	pipelineBoundResources ResourceSet

	dummyBuffer Buffer
	dummyTarget DescriptorImageInfo
}

// NewDescriptorSetCache creates a descriptor set cache sharing the given
// layout cache with the pipeline cache. No driver calls are made until the
// first BindDescriptors miss.
func NewDescriptorSetCache(driver IDriver, layouts *PipelineLayoutCache) *DescriptorSetCache {
	return &DescriptorSetCache{
		driver:         driver,
		layouts:        layouts,
		descriptorSets: make(map[DescriptorKey]*descriptorCacheEntry),
		resources:      make(map[uint32]*ResourceSet),
		poolSize:       InitialDescriptorSetPoolSize,
	}
}

// SetDummyTexture supplies the placeholder image view written into unused
// input attachment slots.
func (c *DescriptorSetCache) SetDummyTexture(view ImageView) {
	c.dummyTarget = DescriptorImageInfo{
		ImageView:   view,
		ImageLayout: ImageLayoutGeneral,
	}
}

// BindUniformBuffer points a uniform slot at a raw buffer region. Pass
// WholeSize to cover the remainder of the buffer.
func (c *DescriptorSetCache) BindUniformBuffer(binding uint32, buffer Buffer, offset, size uint32) {
	c.requirements.UniformBuffers[binding] = buffer
	c.requirements.UniformBufferOffsets[binding] = offset
	c.requirements.UniformBufferSizes[binding] = size
}

// BindUniformBufferObject points a uniform slot at a wrapped buffer object
// and holds a reference to it for the duration of the draw's lifetime.
func (c *DescriptorSetCache) BindUniformBufferObject(binding uint32, bo *BufferObject, offset, size uint32) {
	c.pipelineBoundResources.Acquire(bo)
	c.BindUniformBuffer(binding, bo.Handle(), offset, size)
}

// GetUniformBufferBinding returns the current requirement for a uniform
// slot, useful for push/pop style save and restore.
func (c *DescriptorSetCache) GetUniformBufferBinding(binding uint32) (buffer Buffer, offset, size uint32) {
	return c.requirements.UniformBuffers[binding],
		c.requirements.UniformBufferOffsets[binding],
		c.requirements.UniformBufferSizes[binding]
}

// BindSamplers replaces the whole sampler requirement block. samplers and
// textures are parallel; textures holds the wrappers to keep alive and may
// contain nil entries for unused slots. flags is the program's sampler
// usage, which selects the pipeline layout the bundle is allocated against.
func (c *DescriptorSetCache) BindSamplers(samplers []DescriptorImageInfo, textures []*Texture, flags UsageFlags) {
	for i := 0; i < SamplerBindingCount; i++ {
		if i < len(samplers) {
			c.requirements.Samplers[i] = samplers[i]
		} else {
			c.requirements.Samplers[i] = DescriptorImageInfo{}
		}
	}
	for _, t := range textures {
		if t != nil {
			c.pipelineBoundResources.Acquire(t)
		}
	}
	c.layoutRequirement = flags
}

// BindInputAttachment points an input attachment slot at an image.
func (c *DescriptorSetCache) BindInputAttachment(binding uint32, info DescriptorImageInfo) {
	c.requirements.InputAttachments[binding] = info
}

// AcquireResource adds a resource to the set transferred to the next bound
// descriptor bundle.
func (c *DescriptorSetCache) AcquireResource(r IResource) {
	c.pipelineBoundResources.Acquire(r)
}

// BindDescriptors creates descriptor sets if necessary and binds them. When
// the requirements match what the active command buffer already has bound,
// no driver call is made.
//
// An error means native allocation failed even after pool growth; the
// caller must abandon the draw. Cache state is unchanged in that case.
func (c *DescriptorSetCache) BindDescriptors(cb CommandBuffer) error {
	entry, ok := c.descriptorSets[c.requirements]

	if c.bound == c.requirements {
		// If the first draw's requirements happen to match the zero
		// value of the shadow state, nothing has actually been bound
		// yet; only short-circuit once the cache holds entries.
		if len(c.descriptorSets) > 0 {
			assertInvariant(ok, "bound descriptor state missing from cache")
			if ok {
				entry.lastUsed = c.currentTime
				return nil
			}
		}
	}

	if !ok {
		var err error
		entry, err = c.createDescriptorSets()
		if err != nil {
			Logger().Error("descriptor set creation failed", "error", err)
			return err
		}
	}

	entry.lastUsed = c.currentTime
	c.bound = c.requirements

	// Hand the resources named by the requirements to the bundle, so they
	// survive as long as a submission may reference the bundle.
	rs := c.resources[entry.id]
	if rs == nil {
		rs = &ResourceSet{}
		c.resources[entry.id] = rs
	}
	rs.AcquireAll(&c.pipelineBoundResources)

	layout, err := c.layouts.getOrCreate(c.layoutRequirement, c.currentTime)
	if err != nil {
		return err
	}
	c.driver.CmdBindDescriptorSets(cb, layout.handle, entry.handles[:])
	return nil
}

// createDescriptorSets obtains a descriptor set bundle for the current
// requirements: recycled from the layout's arenas when possible, freshly
// allocated otherwise, growing the pool first if it would overflow. All
// bindings are then rewritten in one batched update.
func (c *DescriptorSetCache) createDescriptorSets() (*descriptorCacheEntry, error) {
	layout, err := c.layouts.getOrCreate(c.layoutRequirement, c.currentTime)
	if err != nil {
		return nil, err
	}
	if err := c.ensurePool(); err != nil {
		return nil, err
	}

	entry := &descriptorCacheEntry{
		layout: c.layoutRequirement,
		id:     c.entryCount,
	}
	c.entryCount++

	// The arenas of a layout always have equal lengths, so checking the
	// first is enough.
	if len(layout.arenas[0]) == 0 {
		if uint32(len(c.descriptorSets))+c.arenasCount+1 > c.poolSize {
			if err := c.growPool(); err != nil {
				return nil, err
			}
		}
		sets, err := c.driver.AllocateDescriptorSets(c.pool, layout.setLayouts[:])
		if err != nil {
			return nil, err
		}
		assertInvariant(len(sets) == DescriptorTypeCount,
			"driver returned %d descriptor sets, want %d", len(sets), DescriptorTypeCount)
		copy(entry.handles[:], sets)
	} else {
		for i := range entry.handles {
			arena := layout.arenas[i]
			assertInvariant(len(arena) == len(layout.arenas[0]), "arena length mismatch")
			entry.handles[i] = arena[len(arena)-1]
			layout.arenas[i] = arena[:len(arena)-1]
		}
		assertInvariant(c.arenasCount > 0, "arena bundle count underflow")
		c.arenasCount--
	}

	// Rewrite every binding of the new bundle. Unused uniform slots get
	// the dummy buffer, unused input attachments the dummy target, so no
	// descriptor the layout declares is ever left unwritten. Unused
	// sampler slots are simply absent from the layout.
	writes := make([]DescriptorWrite, 0,
		UniformBufferBindingCount+SamplerBindingCount+InputAttachmentCount)

	for binding := uint32(0); binding < UniformBufferBindingCount; binding++ {
		w := DescriptorWrite{
			Set:     entry.handles[0],
			Binding: binding,
			Type:    DescriptorTypeUniformBuffer,
		}
		if buffer := c.requirements.UniformBuffers[binding]; buffer != 0 {
			size := uint64(c.requirements.UniformBufferSizes[binding])
			if c.requirements.UniformBufferSizes[binding] == WholeSize {
				size = rangeWhole
			}
			w.Buffer = BufferInfo{
				Buffer: buffer,
				Offset: uint64(c.requirements.UniformBufferOffsets[binding]),
				Range:  size,
			}
		} else {
			w.Buffer = BufferInfo{Buffer: c.dummyBuffer, Range: dummyBufferSize}
		}
		writes = append(writes, w)
	}

	for binding := uint32(0); binding < SamplerBindingCount; binding++ {
		info := c.requirements.Samplers[binding]
		if info.Sampler == 0 {
			continue
		}
		writes = append(writes, DescriptorWrite{
			Set:     entry.handles[1],
			Binding: binding,
			Type:    DescriptorTypeCombinedImageSampler,
			Image:   info,
		})
	}

	for binding := uint32(0); binding < InputAttachmentCount; binding++ {
		info := c.requirements.InputAttachments[binding]
		if info.ImageView == 0 {
			info = c.dummyTarget
			if info.ImageView == 0 {
				continue
			}
		}
		writes = append(writes, DescriptorWrite{
			Set:     entry.handles[2],
			Binding: binding,
			Type:    DescriptorTypeInputAttachment,
			Image:   info,
		})
	}

	c.driver.UpdateDescriptorSets(writes)

	c.descriptorSets[c.requirements] = entry
	Logger().Debug("created descriptor sets", "id", entry.id, "cached", len(c.descriptorSets))
	return entry, nil
}

// ensurePool lazily creates the shared descriptor pool and the dummy
// uniform buffer on first use.
func (c *DescriptorSetCache) ensurePool() error {
	if c.pool != 0 {
		return nil
	}
	pool, err := c.driver.CreateDescriptorPool(
		c.poolSize*DescriptorTypeCount, descriptorPoolSizes(c.poolSize))
	if err != nil {
		return err
	}
	buffer, err := c.driver.CreateBuffer(dummyBufferSize, BufferUsageUniform)
	if err != nil {
		c.driver.DestroyDescriptorPool(pool)
		return err
	}
	c.pool = pool
	c.dummyBuffer = buffer
	return nil
}

func descriptorPoolSizes(groups uint32) []DescriptorPoolSize {
	return []DescriptorPoolSize{
		{Type: DescriptorTypeUniformBuffer, Count: groups * UniformBufferBindingCount},
		{Type: DescriptorTypeCombinedImageSampler, Count: groups * SamplerBindingCount},
		{Type: DescriptorTypeInputAttachment, Count: groups * InputAttachmentCount},
	}
}

// growPool replaces the descriptor pool with one twice the size. The old
// pool and every live bundle become extinct: still valid for pending
// submissions, destroyed once provably idle. The recycling arenas are
// emptied because their sets belong to the old pool.
func (c *DescriptorSetCache) growPool() error {
	newSize := c.poolSize * 2
	newPool, err := c.driver.CreateDescriptorPool(
		newSize*DescriptorTypeCount, descriptorPoolSizes(newSize))
	if err != nil {
		return err
	}
	Logger().Warn("descriptor pool grown", "groups", newSize)

	c.extinctPools = append(c.extinctPools, c.pool)
	for key, entry := range c.descriptorSets {
		c.extinctBundles = append(c.extinctBundles, entry)
		delete(c.descriptorSets, key)
	}
	c.layouts.clearArenas()
	c.arenasCount = 0

	c.pool = newPool
	c.poolSize = newSize
	return nil
}

// UnbindUniformBuffer clears every binding of the given buffer and evicts
// every cached bundle whose key embeds it, regardless of age. Call it
// before destroying a uniform buffer: the engine may later hand out a new
// buffer with the same native handle value, and a stale key must never
// match it.
func (c *DescriptorSetCache) UnbindUniformBuffer(buffer Buffer) {
	if buffer == 0 {
		return
	}
	for i := uint32(0); i < UniformBufferBindingCount; i++ {
		if c.requirements.UniformBuffers[i] == buffer {
			c.BindUniformBuffer(i, 0, 0, 0)
		}
		if c.bound.UniformBuffers[i] == buffer {
			c.bound = DescriptorKey{}
		}
	}
	c.purgeEntries(func(key *DescriptorKey) bool {
		for _, b := range key.UniformBuffers {
			if b == buffer {
				return true
			}
		}
		return false
	})
}

// UnbindImageView clears every sampler or input attachment binding of the
// given view and evicts every cached bundle whose key embeds it. Same
// aliasing concern as UnbindUniformBuffer.
func (c *DescriptorSetCache) UnbindImageView(view ImageView) {
	if view == 0 {
		return
	}
	for i := range c.requirements.Samplers {
		if c.requirements.Samplers[i].ImageView == view {
			c.requirements.Samplers[i] = DescriptorImageInfo{}
		}
		if c.bound.Samplers[i].ImageView == view {
			c.bound = DescriptorKey{}
		}
	}
	for i := range c.requirements.InputAttachments {
		if c.requirements.InputAttachments[i].ImageView == view {
			c.requirements.InputAttachments[i] = DescriptorImageInfo{}
		}
		if c.bound.InputAttachments[i].ImageView == view {
			c.bound = DescriptorKey{}
		}
	}
	c.purgeEntries(func(key *DescriptorKey) bool {
		for _, s := range key.Samplers {
			if s.ImageView == view {
				return true
			}
		}
		for _, a := range key.InputAttachments {
			if a.ImageView == view {
				return true
			}
		}
		return false
	})
}

// purgeEntries moves every cached bundle whose key matches into the extinct
// list. The sets are never recycled; a pending submission may still
// reference them, so they linger until aged out.
func (c *DescriptorSetCache) purgeEntries(match func(*DescriptorKey) bool) {
	purged := 0
	for key, entry := range c.descriptorSets {
		key := key
		if match(&key) {
			c.extinctBundles = append(c.extinctBundles, entry)
			delete(c.descriptorSets, key)
			purged++
		}
	}
	if purged > 0 {
		Logger().Warn("purged stale descriptor bundles", "count", purged)
	}
}

// OnCommandBuffer implements CommandBufferObserver. The shadow state is
// cleared, the submission clock advances, aged bundles return to their
// layout's arenas, and extinct pools are destroyed once nothing can
// reference them.
func (c *DescriptorSetCache) OnCommandBuffer(CommandBuffer) {
	c.currentTime++
	c.bound = DescriptorKey{}
	c.pipelineBoundResources.Clear()

	// Releasing a resource can run its destroy hook, which may call back
	// into UnbindUniformBuffer or UnbindImageView. Collect the ids first
	// and release only after the maps and lists are consistent again.
	var expired []uint32

	for key, entry := range c.descriptorSets {
		if entry.lastUsed+MaxCommandBufferAge >= c.currentTime {
			continue
		}
		if layout, ok := c.layouts.layouts[entry.layout]; ok {
			for i := range layout.arenas {
				layout.arenas[i] = append(layout.arenas[i], entry.handles[i])
			}
			c.arenasCount++
		}
		expired = append(expired, entry.id)
		delete(c.descriptorSets, key)
	}

	kept := c.extinctBundles[:0]
	for _, entry := range c.extinctBundles {
		if entry.lastUsed+MaxCommandBufferAge < c.currentTime {
			expired = append(expired, entry.id)
		} else {
			kept = append(kept, entry)
		}
	}
	c.extinctBundles = kept

	if len(c.extinctBundles) == 0 && len(c.extinctPools) > 0 {
		for _, pool := range c.extinctPools {
			c.driver.DestroyDescriptorPool(pool)
		}
		c.extinctPools = nil
	}

	for _, id := range expired {
		c.releaseEntryResources(id)
	}
}

func (c *DescriptorSetCache) releaseEntryResources(id uint32) {
	if rs, ok := c.resources[id]; ok {
		rs.Clear()
		delete(c.resources, id)
	}
}

// Terminate destroys the pool (and with it every descriptor set), the
// extinct pools, and the dummy buffer, and drops all held references.
func (c *DescriptorSetCache) Terminate() {
	// Empty the cache before releasing anything; release hooks may call
	// back into the Unbind methods.
	c.descriptorSets = make(map[DescriptorKey]*descriptorCacheEntry)
	c.extinctBundles = nil
	released := c.resources
	c.resources = make(map[uint32]*ResourceSet)
	for _, rs := range released {
		rs.Clear()
	}
	c.pipelineBoundResources.Clear()
	for _, pool := range c.extinctPools {
		c.driver.DestroyDescriptorPool(pool)
	}
	c.extinctPools = nil
	if c.pool != 0 {
		c.driver.DestroyDescriptorPool(c.pool)
		c.pool = 0
	}
	if c.dummyBuffer != 0 {
		c.driver.DestroyBuffer(c.dummyBuffer)
		c.dummyBuffer = 0
	}
	c.layouts.clearArenas()
	c.arenasCount = 0
	c.bound = DescriptorKey{}
}
