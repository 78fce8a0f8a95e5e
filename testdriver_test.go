package vkb

import "fmt"

// fakeDriver counts native calls so tests can assert exactly when the
// caches reach for the driver. Handles are sequence numbers.
type fakeDriver struct {
	nextHandle uint64

	shaderModulesCreated     int
	shaderModulesDestroyed   int
	pipelinesCreated         int
	pipelinesDestroyed       int
	setLayoutsCreated        int
	setLayoutsDestroyed      int
	pipelineLayoutsCreated   int
	pipelineLayoutsDestroyed int
	poolsCreated             int
	poolsDestroyed           int
	bundlesAllocated         int
	updates                  int
	buffersCreated           int
	buffersDestroyed         int

	bindPipelineCalls   int
	bindDescriptorCalls int
	scissorCalls        int

	lastBoundPipeline Pipeline
	lastBoundSets     []DescriptorSet
	lastScissor       Rect2D
	lastWrites        []DescriptorWrite
	lastPoolMaxSets   uint32
	setLayoutBindings [][]DescriptorSetLayoutBinding

	failPipelineCreate bool
	failAllocate       bool
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{nextHandle: 1}
}

func (d *fakeDriver) handle() uint64 {
	h := d.nextHandle
	d.nextHandle++
	return h
}

func (d *fakeDriver) CreateShaderModule(code []byte) (ShaderModule, error) {
	d.shaderModulesCreated++
	return ShaderModule(d.handle()), nil
}

func (d *fakeDriver) DestroyShaderModule(ShaderModule) {
	d.shaderModulesDestroyed++
}

func (d *fakeDriver) CreateGraphicsPipeline(info PipelineCreateInfo) (Pipeline, error) {
	if d.failPipelineCreate {
		return 0, fmt.Errorf("pipeline creation refused")
	}
	d.pipelinesCreated++
	return Pipeline(d.handle()), nil
}

func (d *fakeDriver) DestroyPipeline(Pipeline) {
	d.pipelinesDestroyed++
}

func (d *fakeDriver) CreateDescriptorSetLayout(bindings []DescriptorSetLayoutBinding) (DescriptorSetLayout, error) {
	d.setLayoutsCreated++
	d.setLayoutBindings = append(d.setLayoutBindings, bindings)
	return DescriptorSetLayout(d.handle()), nil
}

func (d *fakeDriver) DestroyDescriptorSetLayout(DescriptorSetLayout) {
	d.setLayoutsDestroyed++
}

func (d *fakeDriver) CreatePipelineLayout([]DescriptorSetLayout) (PipelineLayout, error) {
	d.pipelineLayoutsCreated++
	return PipelineLayout(d.handle()), nil
}

func (d *fakeDriver) DestroyPipelineLayout(PipelineLayout) {
	d.pipelineLayoutsDestroyed++
}

func (d *fakeDriver) CreateDescriptorPool(maxSets uint32, sizes []DescriptorPoolSize) (DescriptorPool, error) {
	d.poolsCreated++
	d.lastPoolMaxSets = maxSets
	return DescriptorPool(d.handle()), nil
}

func (d *fakeDriver) DestroyDescriptorPool(DescriptorPool) {
	d.poolsDestroyed++
}

func (d *fakeDriver) AllocateDescriptorSets(pool DescriptorPool, layouts []DescriptorSetLayout) ([]DescriptorSet, error) {
	if d.failAllocate {
		return nil, fmt.Errorf("descriptor allocation refused")
	}
	d.bundlesAllocated++
	sets := make([]DescriptorSet, len(layouts))
	for i := range sets {
		sets[i] = DescriptorSet(d.handle())
	}
	return sets, nil
}

func (d *fakeDriver) UpdateDescriptorSets(writes []DescriptorWrite) {
	d.updates++
	d.lastWrites = writes
}

func (d *fakeDriver) CreateBuffer(size uint64, usage BufferUsage) (Buffer, error) {
	d.buffersCreated++
	return Buffer(d.handle()), nil
}

func (d *fakeDriver) DestroyBuffer(Buffer) {
	d.buffersDestroyed++
}

func (d *fakeDriver) CmdBindPipeline(cb CommandBuffer, p Pipeline) {
	d.bindPipelineCalls++
	d.lastBoundPipeline = p
}

func (d *fakeDriver) CmdBindDescriptorSets(cb CommandBuffer, layout PipelineLayout, sets []DescriptorSet) {
	d.bindDescriptorCalls++
	d.lastBoundSets = append([]DescriptorSet(nil), sets...)
}

func (d *fakeDriver) CmdSetScissor(cb CommandBuffer, scissor Rect2D) {
	d.scissorCalls++
	d.lastScissor = scissor
}

// newTestCaches wires the three caches over a fake driver, the way the
// engine does it at device creation.
func newTestCaches() (*fakeDriver, *PipelineLayoutCache, *PipelineCache, *DescriptorSetCache) {
	driver := newFakeDriver()
	layouts := NewPipelineLayoutCache(driver)
	pipelines := NewPipelineCache(driver, layouts)
	descriptors := NewDescriptorSetCache(driver, layouts)
	return driver, layouts, pipelines, descriptors
}

// flush simulates starting a new command buffer for every observer.
func flush(cb CommandBuffer, observers ...CommandBufferObserver) {
	var c Commands
	for _, o := range observers {
		c.AddObserver(o)
	}
	c.SetCurrent(cb)
}
