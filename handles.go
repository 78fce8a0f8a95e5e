package vkb

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
)

// SpecConstant is one specialization constant. Value is the raw 4-byte cell
// handed to the driver; use the Spec* helpers to fill it.
type SpecConstant struct {
	ID    uint32
	Value uint32
}

func SpecInt(id uint32, v int32) SpecConstant { return SpecConstant{ID: id, Value: uint32(v)} }

func SpecFloat(id uint32, v float32) SpecConstant {
	return SpecConstant{ID: id, Value: math.Float32bits(v)}
}

func SpecBool(id uint32, v bool) SpecConstant {
	c := SpecConstant{ID: id}
	if v {
		c.Value = 1
	}
	return c
}

// Program owns a vertex and a fragment shader module plus the metadata the
// pipeline cache needs: which sampler bindings the shaders use in which
// stages, and the specialization constants to compile with.
type Program struct {
	refCount

	driver  IDriver
	name    string
	shaders [ShaderModuleCount]ShaderModule

	usage          UsageFlags
	specialization *SpecializationInfo
}

// NewProgram compiles the two shader blobs into modules. On failure nothing
// is leaked.
func NewProgram(driver IDriver, name string, vertex, fragment []byte) (*Program, error) {
	vs, err := driver.CreateShaderModule(vertex)
	if err != nil {
		return nil, err
	}
	fs, err := driver.CreateShaderModule(fragment)
	if err != nil {
		driver.DestroyShaderModule(vs)
		return nil, err
	}
	p := &Program{
		driver:  driver,
		name:    name,
		shaders: [ShaderModuleCount]ShaderModule{vs, fs},
	}
	p.initRef(p.destroy)
	Logger().Debug("created program", "name", name)
	return p, nil
}

func (p *Program) Name() string { return p.name }

// SetSamplerUsage declares that the shaders sample binding in the given
// stages. The accumulated usage selects the pipeline layout every pipeline
// built from this program uses.
func (p *Program) SetSamplerUsage(binding uint32, stages ShaderStageFlags) {
	p.usage = SamplerUsage(p.usage, binding, stages)
}

func (p *Program) Usage() UsageFlags { return p.usage }

// SetSpecializationConstants packs the constants into the driver wire form.
// Each value occupies a 4-byte little endian cell. Passing an empty slice
// clears them.
func (p *Program) SetSpecializationConstants(constants []SpecConstant) {
	if len(constants) == 0 {
		p.specialization = nil
		return
	}
	info := &SpecializationInfo{
		Entries: make([]SpecMapEntry, len(constants)),
		Data:    make([]byte, 4*len(constants)),
	}
	for i, c := range constants {
		info.Entries[i] = SpecMapEntry{ConstantID: c.ID, Offset: uint32(4 * i), Size: 4}
		binary.LittleEndian.PutUint32(info.Data[4*i:], c.Value)
	}
	p.specialization = info
}

func (p *Program) destroy() {
	p.driver.DestroyShaderModule(p.shaders[0])
	p.driver.DestroyShaderModule(p.shaders[1])
	p.shaders = [ShaderModuleCount]ShaderModule{}
}

// BufferObject owns a native buffer. Uniform buffer objects are unbound
// from the descriptor cache before destruction so a later buffer that
// happens to reuse the native handle value can never match a stale key.
type BufferObject struct {
	refCount

	driver IDriver
	cache  *DescriptorSetCache
	handle Buffer
	size   uint32
	usage  BufferUsage
}

func NewBufferObject(driver IDriver, cache *DescriptorSetCache, size uint32, usage BufferUsage) (*BufferObject, error) {
	handle, err := driver.CreateBuffer(uint64(size), usage)
	if err != nil {
		return nil, err
	}
	b := &BufferObject{driver: driver, cache: cache, handle: handle, size: size, usage: usage}
	b.initRef(b.destroy)
	return b, nil
}

func (b *BufferObject) Handle() Buffer { return b.handle }
func (b *BufferObject) Size() uint32   { return b.size }

func (b *BufferObject) destroy() {
	if b.cache != nil && b.usage&BufferUsageUniform != 0 {
		b.cache.UnbindUniformBuffer(b.handle)
	}
	b.driver.DestroyBuffer(b.handle)
	b.handle = 0
}

// VertexBuffer groups the buffer objects backing a vertex array with the
// attribute descriptions that address them. The buffers are held by
// reference; setting a slot releases its previous occupant.
type VertexBuffer struct {
	refCount

	attributes []VertexAttribute
	buffers    []Buffer
	resources  *FixedResourceList
}

func NewVertexBuffer(bufferCount int, attributes []VertexAttribute) *VertexBuffer {
	v := &VertexBuffer{
		attributes: attributes,
		buffers:    make([]Buffer, bufferCount),
		resources:  NewFixedResourceList(bufferCount),
	}
	v.initRef(v.destroy)
	return v
}

func (v *VertexBuffer) SetBuffer(index int, bo *BufferObject) {
	v.resources.AcquireAt(index, bo)
	v.buffers[index] = bo.Handle()
}

func (v *VertexBuffer) Attributes() []VertexAttribute { return v.attributes }
func (v *VertexBuffer) Buffers() []Buffer             { return v.buffers }

func (v *VertexBuffer) destroy() {
	v.resources.Clear()
}

// IndexBuffer owns a native index buffer.
type IndexBuffer struct {
	refCount

	driver    IDriver
	handle    Buffer
	indexType IndexType
	count     uint32
}

func NewIndexBuffer(driver IDriver, indexType IndexType, count uint32) (*IndexBuffer, error) {
	elem := uint64(2)
	if indexType == IndexTypeUint32 {
		elem = 4
	}
	handle, err := driver.CreateBuffer(uint64(count)*elem, BufferUsageIndex)
	if err != nil {
		return nil, err
	}
	b := &IndexBuffer{driver: driver, handle: handle, indexType: indexType, count: count}
	b.initRef(b.destroy)
	return b, nil
}

func (b *IndexBuffer) Handle() Buffer       { return b.handle }
func (b *IndexBuffer) IndexType() IndexType { return b.indexType }
func (b *IndexBuffer) Count() uint32        { return b.count }

func (b *IndexBuffer) destroy() {
	b.driver.DestroyBuffer(b.handle)
	b.handle = 0
}

// PrimitiveType is the renderer facing primitive enum, mapped onto the
// driver topology by RenderPrimitive.
type PrimitiveType uint8

const (
	PrimitivePoints PrimitiveType = iota
	PrimitiveLines
	PrimitiveLineStrip
	PrimitiveTriangles
	PrimitiveTriangleStrip
)

// RenderPrimitive pairs a vertex buffer and an index buffer with a
// primitive topology. It holds both buffers by reference.
type RenderPrimitive struct {
	refCount

	topology     PrimitiveTopology
	vertexBuffer *VertexBuffer
	indexBuffer  *IndexBuffer
	resources    *FixedResourceList
}

func NewRenderPrimitive() *RenderPrimitive {
	r := &RenderPrimitive{
		topology:  TopologyTriangleList,
		resources: NewFixedResourceList(2),
	}
	r.initRef(r.destroy)
	return r
}

func (r *RenderPrimitive) SetPrimitiveType(t PrimitiveType) {
	switch t {
	case PrimitivePoints:
		r.topology = TopologyPointList
	case PrimitiveLines:
		r.topology = TopologyLineList
	case PrimitiveLineStrip:
		r.topology = TopologyLineStrip
	case PrimitiveTriangles:
		r.topology = TopologyTriangleList
	case PrimitiveTriangleStrip:
		r.topology = TopologyTriangleStrip
	}
}

func (r *RenderPrimitive) SetBuffers(vb *VertexBuffer, ib *IndexBuffer) {
	r.vertexBuffer = vb
	r.indexBuffer = ib
	r.resources.AcquireAt(0, vb)
	r.resources.AcquireAt(1, ib)
}

func (r *RenderPrimitive) Topology() PrimitiveTopology { return r.topology }
func (r *RenderPrimitive) VertexBuffer() *VertexBuffer { return r.vertexBuffer }
func (r *RenderPrimitive) IndexBuffer() *IndexBuffer   { return r.indexBuffer }

func (r *RenderPrimitive) destroy() {
	r.vertexBuffer = nil
	r.indexBuffer = nil
	r.resources.Clear()
}

// groupSlot identifies one slot of one sampler group, used as the listener
// owner so a texture bound in several slots keeps one listener per slot.
type groupSlot struct {
	group *SamplerGroup
	slot  int
}

type samplerEntry struct {
	texture *Texture
	sampler Sampler
	info    DescriptorImageInfo
}

// SamplerGroup is a fixed size block of texture plus sampler pairs, the
// unit in which the renderer updates sampler bindings. It caches the
// descriptor info per slot and listens on each texture so a replaced
// primary view refreshes the cached info.
type SamplerGroup struct {
	refCount

	entries  []samplerEntry
	textures *FixedResourceList
	depth    map[*Texture]int
}

func NewSamplerGroup(size int) *SamplerGroup {
	g := &SamplerGroup{
		entries:  make([]samplerEntry, size),
		textures: NewFixedResourceList(size),
		depth:    make(map[*Texture]int),
	}
	g.initRef(g.destroy)
	return g
}

func (g *SamplerGroup) Size() int { return len(g.entries) }

// Update binds texture through sampler at slot. Re-binding the identical
// pair is a no-op. texture may be nil to vacate the slot.
func (g *SamplerGroup) Update(slot int, texture *Texture, sampler Sampler) {
	e := &g.entries[slot]
	if e.texture == texture && e.sampler == sampler {
		return
	}
	if e.texture != nil {
		e.texture.RemoveListener(groupSlot{g, slot})
		if e.texture.IsDepth() {
			if n := g.depth[e.texture] - 1; n > 0 {
				g.depth[e.texture] = n
			} else {
				delete(g.depth, e.texture)
			}
		}
	}
	e.texture = texture
	e.sampler = sampler
	if texture == nil {
		e.info = DescriptorImageInfo{}
		g.textures.AcquireAt(slot, nil)
		return
	}
	texture.AddListener(groupSlot{g, slot}, func(*Texture) { g.refresh(slot) })
	if texture.IsDepth() {
		g.depth[texture]++
	}
	g.textures.AcquireAt(slot, texture)
	g.refresh(slot)
}

func (g *SamplerGroup) refresh(slot int) {
	e := &g.entries[slot]
	e.info = DescriptorImageInfo{
		Sampler:     e.sampler,
		ImageView:   e.texture.View(),
		ImageLayout: e.texture.Layout(),
	}
}

// Bind hands the group's bindings to the descriptor set cache. usage is the
// bound program's sampler usage, which selects the layout.
func (g *SamplerGroup) Bind(cache *DescriptorSetCache, usage UsageFlags) {
	infos := make([]DescriptorImageInfo, len(g.entries))
	textures := make([]*Texture, len(g.entries))
	for i := range g.entries {
		infos[i] = g.entries[i].info
		textures[i] = g.entries[i].texture
	}
	cache.BindSamplers(infos, textures, usage)
}

// HasDepthTexture reports whether any slot currently binds a depth texture,
// which the renderer needs to know for layout transitions.
func (g *SamplerGroup) HasDepthTexture() bool { return len(g.depth) > 0 }

func (g *SamplerGroup) destroy() {
	for slot := range g.entries {
		if t := g.entries[slot].texture; t != nil {
			t.RemoveListener(groupSlot{g, slot})
		}
		g.entries[slot] = samplerEntry{}
	}
	g.depth = nil
	g.textures.Clear()
}

// FenceStatus is the observable state of a Fence.
type FenceStatus int32

const (
	FenceStatusIncomplete FenceStatus = iota
	FenceStatusSatisfied
	FenceStatusError
)

// Fence is the client visible completion flag of a submission. The renderer
// thread flips the status when the native fence signals; any thread may
// poll it.
type Fence struct {
	refCount
	status atomic.Int32
}

func NewFence() *Fence {
	f := &Fence{}
	f.initRef(func() {})
	return f
}

func (f *Fence) Status() FenceStatus     { return FenceStatus(f.status.Load()) }
func (f *Fence) SetStatus(s FenceStatus) { f.status.Store(int32(s)) }

// TimerQuery tracks which submission carries a pair of timestamp writes.
// The fence is set on the renderer thread when the query's command buffer
// is submitted and read from the client thread when the result is polled,
// hence the lock.
type TimerQuery struct {
	refCount

	startingIndex uint32
	stoppingIndex uint32

	mu    sync.Mutex
	fence *Fence
}

func NewTimerQuery(startingIndex, stoppingIndex uint32) *TimerQuery {
	q := &TimerQuery{startingIndex: startingIndex, stoppingIndex: stoppingIndex}
	q.initRef(q.destroy)
	return q
}

func (q *TimerQuery) StartingIndex() uint32 { return q.startingIndex }
func (q *TimerQuery) StoppingIndex() uint32 { return q.stoppingIndex }

// SetFence associates the query with the submission that will produce its
// result, releasing the previous association.
func (q *TimerQuery) SetFence(f *Fence) {
	if f != nil {
		f.acquireRef()
	}
	q.mu.Lock()
	old := q.fence
	q.fence = f
	q.mu.Unlock()
	if old != nil {
		old.releaseRef()
	}
}

// Fence returns the associated fence with an extra reference the caller
// must release, or nil when the query has not been submitted yet.
func (q *TimerQuery) Fence() *Fence {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fence != nil {
		q.fence.acquireRef()
	}
	return q.fence
}

func (q *TimerQuery) destroy() {
	q.SetFence(nil)
}
