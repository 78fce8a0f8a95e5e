package vkb

// RasterState carries the fixed function state baked into a pipeline.
// States the engine never changes (depth clamp, polygon mode, line width,
// stencil, depth bounds, ...) are omitted and left at the driver's
// defaults. It is a plain comparable value; field-wise equality is exact,
// there is no padding to worry about.
type RasterState struct {
	CullMode              CullMode
	FrontFace             FrontFace
	DepthBiasEnable       bool
	BlendEnable           bool
	DepthWriteEnable      bool
	AlphaToCoverageEnable bool

	SrcColorBlendFactor BlendFactor
	DstColorBlendFactor BlendFactor
	SrcAlphaBlendFactor BlendFactor
	DstAlphaBlendFactor BlendFactor
	ColorWriteMask      ColorComponentFlags

	RasterizationSamples uint8
	ColorTargetCount     uint8
	ColorBlendOp         BlendOp
	AlphaBlendOp         BlendOp
	DepthCompareOp       CompareOp

	DepthBiasConstantFactor float32
	DepthBiasSlopeFactor    float32
}

// Compact forms of the vertex input descriptions, sized for the key. The
// driver-facing forms in driver.go are rebuilt from these on a cache miss.
type vertexAttributeKey struct {
	location uint8
	binding  uint8
	format   Format
	offset   uint32
}

type vertexBindingKey struct {
	binding   uint16
	inputRate VertexInputRate
	stride    uint32
}

// PipelineKey represents all currently bound state that forms the immutable
// pipeline object. Two keys are the same pipeline exactly when they compare
// equal; the map in PipelineCache relies on nothing else.
type PipelineKey struct {
	Shaders          [ShaderModuleCount]ShaderModule
	RenderPass       RenderPass
	Topology         PrimitiveTopology
	Subpass          uint16
	VertexAttributes [VertexAttributeCount]vertexAttributeKey
	VertexBindings   [VertexAttributeCount]vertexBindingKey
	Raster           RasterState
	Layout           PipelineLayoutKey
}

type pipelineCacheEntry struct {
	handle   Pipeline
	lastUsed Timestamp
}

// PipelineCache maps PipelineKeys to native pipelines. The Bind* methods
// accumulate requirements without touching the driver; BindPipeline issues
// at most one native bind, and a creation only when the key has never been
// seen.
type PipelineCache struct {
	driver  IDriver
	layouts *PipelineLayoutCache

	pipelines   map[PipelineKey]*pipelineCacheEntry
	currentTime Timestamp

	requirements   PipelineKey
	specialization *SpecializationInfo

	// Shadow state for the active command buffer.
	bound          PipelineKey
	currentScissor Rect2D
}

// NewPipelineCache creates a pipeline cache sharing the given layout cache
// with the descriptor set cache. No driver calls are made until the first
// BindPipeline miss.
func NewPipelineCache(driver IDriver, layouts *PipelineLayoutCache) *PipelineCache {
	return &PipelineCache{
		driver:    driver,
		layouts:   layouts,
		pipelines: make(map[PipelineKey]*pipelineCacheEntry),
	}
}

// BindProgram selects the shader modules, the specialization constants and
// the sampler usage (and with it the pipeline layout) for subsequent draws.
func (c *PipelineCache) BindProgram(p *Program) {
	c.requirements.Shaders = p.shaders
	c.requirements.Layout = p.usage
	c.specialization = p.specialization
}

// BindRasterState selects the fixed function state for subsequent draws.
func (c *PipelineCache) BindRasterState(rs RasterState) {
	c.requirements.Raster = rs
}

// CurrentRasterState returns the raster state requirement as last bound.
func (c *PipelineCache) CurrentRasterState() RasterState {
	return c.requirements.Raster
}

// BindRenderPass selects the render pass and subpass for subsequent draws.
func (c *PipelineCache) BindRenderPass(rp RenderPass, subpass int) {
	c.requirements.RenderPass = rp
	c.requirements.Subpass = uint16(subpass)
}

// BindPrimitiveTopology selects the primitive topology for subsequent draws.
func (c *PipelineCache) BindPrimitiveTopology(t PrimitiveTopology) {
	c.requirements.Topology = t
}

// BindVertexArray selects the vertex input layout for subsequent draws.
// Slots beyond the given slices are cleared, so a shorter layout never
// inherits stale attributes from a longer previous one.
func (c *PipelineCache) BindVertexArray(attrs []VertexAttribute, bindings []VertexBinding) {
	for i := 0; i < VertexAttributeCount; i++ {
		if i < len(attrs) {
			a := attrs[i]
			assertInvariant(a.Location <= 0xff && a.Binding <= 0xff,
				"vertex attribute location/binding out of range")
			c.requirements.VertexAttributes[i] = vertexAttributeKey{
				location: uint8(a.Location),
				binding:  uint8(a.Binding),
				format:   a.Format,
				offset:   a.Offset,
			}
		} else {
			c.requirements.VertexAttributes[i] = vertexAttributeKey{}
		}
		if i < len(bindings) {
			b := bindings[i]
			c.requirements.VertexBindings[i] = vertexBindingKey{
				binding:   uint16(b.Binding),
				inputRate: b.InputRate,
				stride:    b.Stride,
			}
		} else {
			c.requirements.VertexBindings[i] = vertexBindingKey{}
		}
	}
}

// BindPipeline compares the accumulated requirements against what the
// active command buffer last bound. Identical state is a no-op. Otherwise
// the pipeline is looked up or created, then bound. An error means native
// creation failed; the caller must abandon the draw.
func (c *PipelineCache) BindPipeline(cb CommandBuffer) error {
	if c.bound == c.requirements {
		return nil
	}

	entry, ok := c.pipelines[c.requirements]
	if !ok {
		var err error
		entry, err = c.createPipeline()
		if err != nil {
			Logger().Error("pipeline creation failed", "error", err)
			return err
		}
	}
	entry.lastUsed = c.currentTime

	c.driver.CmdBindPipeline(cb, entry.handle)
	c.bound = c.requirements
	return nil
}

// createPipeline builds creation parameters from the requirements key and
// asks the driver for a new pipeline. The entry is inserted only on
// success.
func (c *PipelineCache) createPipeline() (*pipelineCacheEntry, error) {
	layout, err := c.layouts.getOrCreate(c.requirements.Layout, c.currentTime)
	if err != nil {
		return nil, err
	}

	// Trailing all-zero slots are unused; everything up to the last
	// populated slot is passed through as-is.
	numAttrs, numBindings := 0, 0
	for i := 0; i < VertexAttributeCount; i++ {
		if c.requirements.VertexAttributes[i].format != 0 {
			numAttrs = i + 1
		}
		if c.requirements.VertexBindings[i].stride != 0 {
			numBindings = i + 1
		}
	}
	attrs := make([]VertexAttribute, numAttrs)
	for i := range attrs {
		a := c.requirements.VertexAttributes[i]
		attrs[i] = VertexAttribute{
			Location: uint32(a.location),
			Binding:  uint32(a.binding),
			Format:   a.format,
			Offset:   a.offset,
		}
	}
	bindings := make([]VertexBinding, numBindings)
	for i := range bindings {
		b := c.requirements.VertexBindings[i]
		bindings[i] = VertexBinding{
			Binding:   uint32(b.binding),
			Stride:    b.stride,
			InputRate: b.inputRate,
		}
	}

	handle, err := c.driver.CreateGraphicsPipeline(PipelineCreateInfo{
		VertexShader:     c.requirements.Shaders[0],
		FragmentShader:   c.requirements.Shaders[1],
		Specialization:   c.specialization,
		RenderPass:       c.requirements.RenderPass,
		Subpass:          uint32(c.requirements.Subpass),
		Topology:         c.requirements.Topology,
		VertexAttributes: attrs,
		VertexBindings:   bindings,
		Raster:           c.requirements.Raster,
		Layout:           layout.handle,
	})
	if err != nil {
		return nil, err
	}

	entry := &pipelineCacheEntry{handle: handle, lastUsed: c.currentTime}
	c.pipelines[c.requirements] = entry
	Logger().Debug("created pipeline", "cached", len(c.pipelines))
	return entry, nil
}

// BindScissor records a scissor rectangle if it differs from the one the
// active command buffer last saw.
func (c *PipelineCache) BindScissor(cb CommandBuffer, scissor Rect2D) {
	if c.currentScissor == scissor {
		return
	}
	c.currentScissor = scissor
	c.driver.CmdSetScissor(cb, scissor)
}

// OnCommandBuffer implements CommandBufferObserver. Bindings are local to a
// command buffer, so the shadow state is cleared; the submission clock
// advances and pipelines unused for MaxCommandBufferAge flushes are
// destroyed.
func (c *PipelineCache) OnCommandBuffer(CommandBuffer) {
	c.currentTime++
	c.bound = PipelineKey{}
	c.currentScissor = Rect2D{}

	for key, entry := range c.pipelines {
		if entry.lastUsed+MaxCommandBufferAge < c.currentTime {
			c.driver.DestroyPipeline(entry.handle)
			delete(c.pipelines, key)
		}
	}
}

// Terminate destroys every cached pipeline. The shared layout cache is left
// alone; terminate it separately after all of its users are gone.
func (c *PipelineCache) Terminate() {
	for key, entry := range c.pipelines {
		c.driver.DestroyPipeline(entry.handle)
		delete(c.pipelines, key)
	}
	c.bound = PipelineKey{}
}
