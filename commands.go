package vkb

// Timestamp counts command buffer flushes since the caches were constructed.
// It is a logical clock, not wall time: if an entry was last used more than
// MaxCommandBufferAge flushes ago, no in-flight submission can still
// reference it.
type Timestamp uint64

// MaxCommandBufferAge bounds how many command buffers may be in flight at
// once. Entries untouched for longer than this are safe to destroy or
// recycle.
const MaxCommandBufferAge = 3

// CommandBufferObserver is notified whenever the engine starts recording a
// new command buffer. Native pipeline and descriptor bindings do not carry
// over between command buffers, so the caches implement this to reset their
// shadow state and to advance their reclamation clock.
type CommandBufferObserver interface {
	OnCommandBuffer(cb CommandBuffer)
}

// Commands fans out command buffer changes to the registered observers. The
// engine owns command buffer construction and submission; this type only
// tracks which buffer is current.
type Commands struct {
	current   CommandBuffer
	observers []CommandBufferObserver
}

// AddObserver registers an observer. Observers are notified in registration
// order.
func (c *Commands) AddObserver(o CommandBufferObserver) {
	c.observers = append(c.observers, o)
}

// SetCurrent makes cb the command buffer being recorded and notifies all
// observers. Call it once per flush, before any bind calls are issued for
// the new buffer.
func (c *Commands) SetCurrent(cb CommandBuffer) {
	c.current = cb
	for _, o := range c.observers {
		o.OnCommandBuffer(cb)
	}
}

// Current returns the command buffer last announced via SetCurrent.
func (c *Commands) Current() CommandBuffer {
	return c.current
}
