/*
Package vkb implements the binding and caching layer which sits between a
rendering engine and the Vulkan graphics API. Vulkan front loads a lot of
cost into object construction: pipelines, pipeline layouts and descriptor
sets are all expensive to build, but cheap to bind once they exist. An
engine on the other hand thinks in terms of small, frequently changing
pieces of state - "use this shader", "bind this texture", "blend like so".
This package translates the second world into the first, creating native
objects lazily and reusing them whenever the described state repeats.

There are three caches, which share a common notion of time:

	PipelineCache		maps shader/vertex-layout/raster state to a VkPipeline
	PipelineLayoutCache	maps a sampler usage bitset to a pipeline layout and
				its three descriptor set layouts
	DescriptorSetCache	maps concrete resource bindings to a bundle of three
				descriptor sets, with per-layout recycling arenas

Time here is not wall clock time. Every command buffer flush advances a
submission counter, and a cache entry whose last use is more than a fixed
number of flushes in the past is provably no longer referenced by the GPU,
so it can be destroyed or recycled. That is the entire lifetime story: no
fences per entry, no garbage collector involvement, just the counter.

The caches never talk to Vulkan directly. They speak to an IDriver, a small
interface of create/destroy/bind calls over opaque handles. VKDriver is the
production implementation on top of github.com/vulkan-go/vulkan, and tests
substitute a recording fake. This also keeps the hot path honest: the bind
methods which accumulate state (BindProgram, BindRasterState, ...) make no
driver calls at all, only BindPipeline and BindDescriptors do, and only
when the accumulated state actually differs from what the active command
buffer last saw.

Bindings in Vulkan are local to a command buffer, not global. Whenever the
engine starts recording a new command buffer it must announce it through
Commands.SetCurrent (or call OnCommandBuffer on each cache directly) so the
caches reset their shadow state; skipping this produces incorrect
"already bound" decisions.

Engine facing wrappers (Program, BufferObject, VertexBuffer, IndexBuffer,
SamplerGroup, RenderPrimitive, RenderTarget, TimerQuery) hold the inputs
the caches key on, and participate in reference counted resource tracking
so nothing a pending command buffer can see is destroyed early.
*/
package vkb
