package vkb

// MaxColorAttachmentCount is the number of simultaneous color targets a
// render target can carry.
const MaxColorAttachmentCount = 8

// Rect2D is an axis aligned pixel rectangle. The offset may be negative;
// clampToFramebuffer handles that.
type Rect2D struct {
	X      int32
	Y      int32
	Width  uint32
	Height uint32
}

// Viewport mirrors Rect2D for the client facing viewport state.
type Viewport struct {
	X      int32
	Y      int32
	Width  uint32
	Height uint32
}

// flipVertically converts between the client's bottom-left origin and the
// native top-left origin within a framebuffer of the given height.
func flipVertically(rect Rect2D, framebufferHeight uint32) Rect2D {
	rect.Y = int32(framebufferHeight) - rect.Y - int32(rect.Height)
	return rect
}

// clampToFramebuffer intersects rect with [0,width) x [0,height). A rect
// entirely outside comes back with zero extent.
func clampToFramebuffer(rect Rect2D, width, height uint32) Rect2D {
	left := max(rect.X, 0)
	bottom := max(rect.Y, 0)
	right := min(rect.X+int32(rect.Width), int32(width))
	top := min(rect.Y+int32(rect.Height), int32(height))
	return Rect2D{
		X:      left,
		Y:      bottom,
		Width:  uint32(max(right-left, 0)),
		Height: uint32(max(top-bottom, 0)),
	}
}

// RenderTarget groups the color and depth attachments of a render pass and
// answers geometry questions about them. Attachments are held by reference
// for as long as the target lives.
type RenderTarget struct {
	refCount

	width   uint32
	height  uint32
	samples uint8

	color      [MaxColorAttachmentCount]*Texture
	colorCount int
	depth      *Texture

	resources *FixedResourceList
}

// NewRenderTarget builds a target over the given attachments. color may
// have nil gaps; colorCount reports only populated slots.
func NewRenderTarget(width, height uint32, samples uint8, color []*Texture, depth *Texture) *RenderTarget {
	rt := &RenderTarget{
		width:     width,
		height:    height,
		samples:   samples,
		depth:     depth,
		resources: NewFixedResourceList(MaxColorAttachmentCount + 1),
	}
	rt.initRef(rt.destroy)
	for i, t := range color {
		if i >= MaxColorAttachmentCount {
			break
		}
		rt.color[i] = t
		if t != nil {
			rt.colorCount++
			rt.resources.AcquireAt(i, t)
		}
	}
	if depth != nil {
		rt.resources.AcquireAt(MaxColorAttachmentCount, depth)
	}
	return rt
}

func (rt *RenderTarget) Extent() (width, height uint32) { return rt.width, rt.height }
func (rt *RenderTarget) Samples() uint8                 { return rt.samples }
func (rt *RenderTarget) ColorTargetCount() int          { return rt.colorCount }
func (rt *RenderTarget) DepthTarget() *Texture          { return rt.depth }

func (rt *RenderTarget) ColorTarget(index int) *Texture { return rt.color[index] }

// TransformClientRect clamps a client rectangle to the target and converts
// it to the native coordinate convention. Scissor rectangles go through
// this before reaching the driver.
func (rt *RenderTarget) TransformClientRect(rect Rect2D) Rect2D {
	rect = clampToFramebuffer(rect, rt.width, rt.height)
	return flipVertically(rect, rt.height)
}

func (rt *RenderTarget) destroy() {
	rt.resources.Clear()
	rt.color = [MaxColorAttachmentCount]*Texture{}
	rt.depth = nil
}
