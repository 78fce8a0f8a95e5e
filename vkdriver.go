package vkb

import (
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
	"honnef.co/go/safeish"
)

// VKDriver implements IDriver on a Vulkan device. It owns no caching logic;
// it translates the package's plain structs into Vulkan create info and
// keeps the unsafe handle casts in one file. Buffers get their own
// device-local allocation; the driver remembers the memory so DestroyBuffer
// can free it.
type VKDriver struct {
	gpu      vk.PhysicalDevice
	device   vk.Device
	memProps vk.PhysicalDeviceMemoryProperties

	bufferMemory map[Buffer]vk.DeviceMemory
}

// NewVKDriver wraps an already initialized device. The caller keeps
// ownership of the device and must keep it alive for the driver's lifetime.
func NewVKDriver(gpu vk.PhysicalDevice, device vk.Device) *VKDriver {
	var memProps vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(gpu, &memProps)
	memProps.Deref()
	return &VKDriver{
		gpu:          gpu,
		device:       device,
		memProps:     memProps,
		bufferMemory: make(map[Buffer]vk.DeviceMemory),
	}
}

var end = "\x00"

func safeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != '\x00' {
		return s + end
	}
	return s
}

func (d *VKDriver) CreateShaderModule(code []byte) (ShaderModule, error) {
	var module vk.ShaderModule
	err := vk.Error(vk.CreateShaderModule(d.device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    safeish.SliceCast[[]uint32](code),
	}, nil, &module))
	if err != nil {
		return 0, errors.Wrap(err, "vkCreateShaderModule")
	}
	return ShaderModule(safeish.Cast[uint64](module)), nil
}

func (d *VKDriver) DestroyShaderModule(m ShaderModule) {
	vk.DestroyShaderModule(d.device, safeish.Cast[vk.ShaderModule](uint64(m)), nil)
}

func (d *VKDriver) CreateGraphicsPipeline(info PipelineCreateInfo) (Pipeline, error) {
	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: safeish.Cast[vk.ShaderModule](uint64(info.VertexShader)),
			PName:  safeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: safeish.Cast[vk.ShaderModule](uint64(info.FragmentShader)),
			PName:  safeString("main"),
		},
	}

	if info.Specialization != nil {
		entries := make([]vk.SpecializationMapEntry, len(info.Specialization.Entries))
		for i, e := range info.Specialization.Entries {
			entries[i] = vk.SpecializationMapEntry{
				ConstantID: e.ConstantID,
				Offset:     e.Offset,
				Size:       uint(e.Size),
			}
		}
		spec := &vk.SpecializationInfo{
			MapEntryCount: uint32(len(entries)),
			PMapEntries:   entries,
			DataSize:      uint(len(info.Specialization.Data)),
			PData:         unsafe.Pointer(unsafe.SliceData(info.Specialization.Data)),
		}
		specs := []vk.SpecializationInfo{*spec}
		stages[0].PSpecializationInfo = specs
		stages[1].PSpecializationInfo = specs
	}

	attributes := make([]vk.VertexInputAttributeDescription, len(info.VertexAttributes))
	for i, a := range info.VertexAttributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  a.Binding,
			Format:   vk.Format(a.Format),
			Offset:   a.Offset,
		}
	}
	bindings := make([]vk.VertexInputBindingDescription, len(info.VertexBindings))
	for i, b := range info.VertexBindings {
		bindings[i] = vk.VertexInputBindingDescription{
			Binding:   b.Binding,
			Stride:    b.Stride,
			InputRate: vk.VertexInputRate(b.InputRate),
		}
	}

	var vertexInputState = vk.PipelineVertexInputStateCreateInfo{}
	vertexInputState.SType = vk.StructureTypePipelineVertexInputStateCreateInfo
	vertexInputState.VertexAttributeDescriptionCount = uint32(len(attributes))
	vertexInputState.PVertexAttributeDescriptions = attributes
	vertexInputState.VertexBindingDescriptionCount = uint32(len(bindings))
	vertexInputState.PVertexBindingDescriptions = bindings

	var inputAssemblyState = vk.PipelineInputAssemblyStateCreateInfo{}
	inputAssemblyState.SType = vk.StructureTypePipelineInputAssemblyStateCreateInfo
	inputAssemblyState.Topology = vk.PrimitiveTopology(info.Topology)
	inputAssemblyState.PrimitiveRestartEnable = vk.False

	// Viewport and scissor are always dynamic; the counts still have to be
	// declared here.
	var viewportState = vk.PipelineViewportStateCreateInfo{}
	viewportState.SType = vk.StructureTypePipelineViewportStateCreateInfo
	viewportState.ViewportCount = 1
	viewportState.ScissorCount = 1

	raster := info.Raster

	var rasterState = vk.PipelineRasterizationStateCreateInfo{}
	rasterState.SType = vk.StructureTypePipelineRasterizationStateCreateInfo
	rasterState.PolygonMode = vk.PolygonModeFill
	rasterState.LineWidth = 1.0
	rasterState.CullMode = vk.CullModeFlags(raster.CullMode)
	rasterState.FrontFace = vk.FrontFace(raster.FrontFace)
	rasterState.DepthBiasEnable = vkBool(raster.DepthBiasEnable)
	rasterState.DepthBiasConstantFactor = raster.DepthBiasConstantFactor
	rasterState.DepthBiasSlopeFactor = raster.DepthBiasSlopeFactor

	var multisampleState = vk.PipelineMultisampleStateCreateInfo{}
	multisampleState.SType = vk.StructureTypePipelineMultisampleStateCreateInfo
	multisampleState.RasterizationSamples = vk.SampleCountFlagBits(raster.RasterizationSamples)
	multisampleState.AlphaToCoverageEnable = vkBool(raster.AlphaToCoverageEnable)

	attachment := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vkBool(raster.BlendEnable),
		SrcColorBlendFactor: vk.BlendFactor(raster.SrcColorBlendFactor),
		DstColorBlendFactor: vk.BlendFactor(raster.DstColorBlendFactor),
		ColorBlendOp:        vk.BlendOp(raster.ColorBlendOp),
		SrcAlphaBlendFactor: vk.BlendFactor(raster.SrcAlphaBlendFactor),
		DstAlphaBlendFactor: vk.BlendFactor(raster.DstAlphaBlendFactor),
		AlphaBlendOp:        vk.BlendOp(raster.AlphaBlendOp),
		ColorWriteMask:      vk.ColorComponentFlags(raster.ColorWriteMask),
	}
	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, raster.ColorTargetCount)
	for i := range blendAttachments {
		blendAttachments[i] = attachment
	}

	var colorBlendState = vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	var depthStencil = vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vk.True,
		DepthWriteEnable: vkBool(raster.DepthWriteEnable),
		DepthCompareOp:   vk.CompareOp(raster.DepthCompareOp),
		MinDepthBounds:   0.0,
		MaxDepthBounds:   1.0,
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	createInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputState,
		PInputAssemblyState: &inputAssemblyState,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterState,
		PMultisampleState:   &multisampleState,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendState,
		PDynamicState:       &dynamicState,
		Layout:              safeish.Cast[vk.PipelineLayout](uint64(info.Layout)),
		RenderPass:          safeish.Cast[vk.RenderPass](uint64(info.RenderPass)),
		Subpass:             info.Subpass,
	}

	pipelines := make([]vk.Pipeline, 1)
	err := vk.Error(vk.CreateGraphicsPipelines(d.device, vk.NullPipelineCache, 1,
		[]vk.GraphicsPipelineCreateInfo{createInfo}, nil, pipelines))
	if err != nil {
		return 0, errors.Wrap(err, "vkCreateGraphicsPipelines")
	}
	return Pipeline(safeish.Cast[uint64](pipelines[0])), nil
}

func (d *VKDriver) DestroyPipeline(p Pipeline) {
	vk.DestroyPipeline(d.device, safeish.Cast[vk.Pipeline](uint64(p)), nil)
}

func (d *VKDriver) CreateDescriptorSetLayout(bindings []DescriptorSetLayoutBinding) (DescriptorSetLayout, error) {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vk.DescriptorType(b.Type),
			DescriptorCount: b.Count,
			StageFlags:      vk.ShaderStageFlags(b.Stages),
		}
	}
	var layout vk.DescriptorSetLayout
	err := vk.Error(vk.CreateDescriptorSetLayout(d.device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}, nil, &layout))
	if err != nil {
		return 0, errors.Wrap(err, "vkCreateDescriptorSetLayout")
	}
	return DescriptorSetLayout(safeish.Cast[uint64](layout)), nil
}

func (d *VKDriver) DestroyDescriptorSetLayout(l DescriptorSetLayout) {
	vk.DestroyDescriptorSetLayout(d.device, safeish.Cast[vk.DescriptorSetLayout](uint64(l)), nil)
}

func (d *VKDriver) CreatePipelineLayout(setLayouts []DescriptorSetLayout) (PipelineLayout, error) {
	vkLayouts := make([]vk.DescriptorSetLayout, len(setLayouts))
	for i, l := range setLayouts {
		vkLayouts[i] = safeish.Cast[vk.DescriptorSetLayout](uint64(l))
	}
	var layout vk.PipelineLayout
	err := vk.Error(vk.CreatePipelineLayout(d.device, &vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(vkLayouts)),
		PSetLayouts:    vkLayouts,
	}, nil, &layout))
	if err != nil {
		return 0, errors.Wrap(err, "vkCreatePipelineLayout")
	}
	return PipelineLayout(safeish.Cast[uint64](layout)), nil
}

func (d *VKDriver) DestroyPipelineLayout(l PipelineLayout) {
	vk.DestroyPipelineLayout(d.device, safeish.Cast[vk.PipelineLayout](uint64(l)), nil)
}

func (d *VKDriver) CreateDescriptorPool(maxSets uint32, sizes []DescriptorPoolSize) (DescriptorPool, error) {
	vkSizes := make([]vk.DescriptorPoolSize, len(sizes))
	for i, s := range sizes {
		vkSizes[i] = vk.DescriptorPoolSize{
			Type:            vk.DescriptorType(s.Type),
			DescriptorCount: s.Count,
		}
	}
	var pool vk.DescriptorPool
	err := vk.Error(vk.CreateDescriptorPool(d.device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(vkSizes)),
		PPoolSizes:    vkSizes,
	}, nil, &pool))
	if err != nil {
		return 0, errors.Wrap(err, "vkCreateDescriptorPool")
	}
	return DescriptorPool(safeish.Cast[uint64](pool)), nil
}

func (d *VKDriver) DestroyDescriptorPool(p DescriptorPool) {
	vk.DestroyDescriptorPool(d.device, safeish.Cast[vk.DescriptorPool](uint64(p)), nil)
}

func (d *VKDriver) AllocateDescriptorSets(pool DescriptorPool, layouts []DescriptorSetLayout) ([]DescriptorSet, error) {
	vkLayouts := make([]vk.DescriptorSetLayout, len(layouts))
	for i, l := range layouts {
		vkLayouts[i] = safeish.Cast[vk.DescriptorSetLayout](uint64(l))
	}
	vkSets := make([]vk.DescriptorSet, len(layouts))
	err := vk.Error(vk.AllocateDescriptorSets(d.device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     safeish.Cast[vk.DescriptorPool](uint64(pool)),
		DescriptorSetCount: uint32(len(vkLayouts)),
		PSetLayouts:        vkLayouts,
	}, &vkSets[0]))
	if err != nil {
		return nil, errors.Wrap(err, "vkAllocateDescriptorSets")
	}
	sets := make([]DescriptorSet, len(vkSets))
	for i, s := range vkSets {
		sets[i] = DescriptorSet(safeish.Cast[uint64](s))
	}
	return sets, nil
}

func (d *VKDriver) UpdateDescriptorSets(writes []DescriptorWrite) {
	if len(writes) == 0 {
		return
	}
	vkWrites := make([]vk.WriteDescriptorSet, len(writes))
	for i, w := range writes {
		vkWrite := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          safeish.Cast[vk.DescriptorSet](uint64(w.Set)),
			DstBinding:      w.Binding,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorType(w.Type),
		}
		if w.Type == DescriptorTypeUniformBuffer {
			vkWrite.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: safeish.Cast[vk.Buffer](uint64(w.Buffer.Buffer)),
				Offset: vk.DeviceSize(w.Buffer.Offset),
				Range:  vk.DeviceSize(w.Buffer.Range),
			}}
		} else {
			vkWrite.PImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     safeish.Cast[vk.Sampler](uint64(w.Image.Sampler)),
				ImageView:   safeish.Cast[vk.ImageView](uint64(w.Image.ImageView)),
				ImageLayout: vk.ImageLayout(w.Image.ImageLayout),
			}}
		}
		vkWrites[i] = vkWrite
	}
	vk.UpdateDescriptorSets(d.device, uint32(len(vkWrites)), vkWrites, 0, nil)
}

func (d *VKDriver) CreateBuffer(size uint64, usage BufferUsage) (Buffer, error) {
	var buffer vk.Buffer
	err := vk.Error(vk.CreateBuffer(d.device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buffer))
	if err != nil {
		return 0, errors.Wrap(err, "vkCreateBuffer")
	}

	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, buffer, &memReqs)
	memReqs.Deref()

	memType, err := d.findMemoryType(memReqs.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyBuffer(d.device, buffer, nil)
		return 0, err
	}

	var memory vk.DeviceMemory
	err = vk.Error(vk.AllocateMemory(d.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memType,
	}, nil, &memory))
	if err != nil {
		vk.DestroyBuffer(d.device, buffer, nil)
		return 0, errors.Wrap(err, "vkAllocateMemory")
	}

	err = vk.Error(vk.BindBufferMemory(d.device, buffer, memory, 0))
	if err != nil {
		vk.FreeMemory(d.device, memory, nil)
		vk.DestroyBuffer(d.device, buffer, nil)
		return 0, errors.Wrap(err, "vkBindBufferMemory")
	}

	handle := Buffer(safeish.Cast[uint64](buffer))
	d.bufferMemory[handle] = memory
	return handle, nil
}

func (d *VKDriver) DestroyBuffer(b Buffer) {
	vk.DestroyBuffer(d.device, safeish.Cast[vk.Buffer](uint64(b)), nil)
	if memory, ok := d.bufferMemory[b]; ok {
		vk.FreeMemory(d.device, memory, nil)
		delete(d.bufferMemory, b)
	}
}

func (d *VKDriver) CmdBindPipeline(cb CommandBuffer, p Pipeline) {
	vk.CmdBindPipeline(safeish.Cast[vk.CommandBuffer](uint64(cb)),
		vk.PipelineBindPointGraphics, safeish.Cast[vk.Pipeline](uint64(p)))
}

func (d *VKDriver) CmdBindDescriptorSets(cb CommandBuffer, layout PipelineLayout, sets []DescriptorSet) {
	vkSets := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		vkSets[i] = safeish.Cast[vk.DescriptorSet](uint64(s))
	}
	vk.CmdBindDescriptorSets(safeish.Cast[vk.CommandBuffer](uint64(cb)),
		vk.PipelineBindPointGraphics, safeish.Cast[vk.PipelineLayout](uint64(layout)),
		0, uint32(len(vkSets)), vkSets, 0, nil)
}

func (d *VKDriver) CmdSetScissor(cb CommandBuffer, scissor Rect2D) {
	vk.CmdSetScissor(safeish.Cast[vk.CommandBuffer](uint64(cb)), 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: scissor.X, Y: scissor.Y},
		Extent: vk.Extent2D{Width: scissor.Width, Height: scissor.Height},
	}})
}

func (d *VKDriver) findMemoryType(typeBits uint32, props vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < d.memProps.MemoryTypeCount; i++ {
		memType := d.memProps.MemoryTypes[i]
		memType.Deref()
		if typeBits&(1<<i) != 0 && vk.MemoryPropertyFlags(memType.PropertyFlags)&props == props {
			return i, nil
		}
	}
	return 0, errors.New("no suitable memory type")
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}
