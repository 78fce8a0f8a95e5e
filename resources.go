package vkb

// GPU resources referenced by a recorded command buffer must outlive its
// execution. Every engine facing wrapper embeds a refCount; trackers below
// hold counted references on behalf of whatever might still need the
// resource (a render primitive, a cached descriptor bundle, the draw being
// assembled right now). The native object is destroyed exactly once, when
// the last reference goes away.

// IResource is implemented by every wrapper whose native object must not be
// destroyed while a command buffer referencing it is in flight.
type IResource interface {
	acquireRef()
	releaseRef()
}

// refCount is embedded by resource wrappers. Not safe for concurrent use;
// all acquisition happens on the rendering thread.
type refCount struct {
	refs    int32
	destroy func()
}

func (r *refCount) acquireRef() {
	r.refs++
}

func (r *refCount) releaseRef() {
	r.refs--
	assertInvariant(r.refs >= 0, "reference count went negative (%d)", r.refs)
	if r.refs == 0 && r.destroy != nil {
		d := r.destroy
		r.destroy = nil
		d()
	}
}

// initRef sets up the owner's reference and the destruction hook. The
// wrapper's Destroy method releases this initial reference.
func (r *refCount) initRef(destroy func()) {
	r.refs = 1
	r.destroy = destroy
}

// Destroy releases the owner's reference. The native object lives on until
// every tracker holding the resource lets go as well.
func (r *refCount) Destroy() {
	r.releaseRef()
}

// FixedResourceList holds a bounded number of reference slots. Acquiring
// into an occupied slot replaces the previous reference rather than stacking
// a second one, so repeated acquisition of the same resource is a no-op.
// Used where the set of referenced objects has a known small bound, e.g. the
// buffers of a vertex array or the two buffers of a render primitive.
type FixedResourceList struct {
	slots []IResource
}

// NewFixedResourceList creates a list with the given number of slots.
func NewFixedResourceList(capacity int) *FixedResourceList {
	return &FixedResourceList{slots: make([]IResource, capacity)}
}

// AcquireAt stores a reference to r in the given slot, releasing whatever
// the slot held before. r may be nil to just vacate the slot.
func (l *FixedResourceList) AcquireAt(slot int, r IResource) {
	old := l.slots[slot]
	if old == r {
		return
	}
	if r != nil {
		r.acquireRef()
	}
	l.slots[slot] = r
	if old != nil {
		old.releaseRef()
	}
}

// Clear releases every held reference.
func (l *FixedResourceList) Clear() {
	for i, r := range l.slots {
		if r != nil {
			r.releaseRef()
			l.slots[i] = nil
		}
	}
}

// ResourceSet holds a variable number of references, one per distinct
// resource. Used by descriptor bundles and sampler groups, which may
// reference any number of textures.
type ResourceSet struct {
	resources map[IResource]struct{}
}

// Acquire adds a reference to r. Acquiring a resource already in the set is
// a no-op.
func (s *ResourceSet) Acquire(r IResource) {
	if r == nil {
		return
	}
	if s.resources == nil {
		s.resources = make(map[IResource]struct{})
	}
	if _, ok := s.resources[r]; ok {
		return
	}
	r.acquireRef()
	s.resources[r] = struct{}{}
}

// AcquireAll adds a reference to every resource held by other. Used to
// propagate the per-draw pipeline-bound resources into the tracker of the
// descriptor bundle that will carry them through submission.
func (s *ResourceSet) AcquireAll(other *ResourceSet) {
	for r := range other.resources {
		s.Acquire(r)
	}
}

// Clear releases every held reference.
func (s *ResourceSet) Clear() {
	for r := range s.resources {
		r.releaseRef()
		delete(s.resources, r)
	}
}

// Size returns the number of distinct resources held.
func (s *ResourceSet) Size() int {
	return len(s.resources)
}
