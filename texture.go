package vkb

// Texture wraps a native image view together with the layout the image is
// expected to be in when sampled. The wrapper does not own the underlying
// image; it exists so sampler groups and descriptor bundles can hold a
// counted reference and so view replacement can be observed.
type Texture struct {
	refCount

	cache  *DescriptorSetCache
	view   ImageView
	layout ImageLayout
	depth  bool

	listeners map[any]func(*Texture)
}

// NewTexture wraps view. depth marks depth formats, which sampler groups
// track separately for layout transitions.
func NewTexture(cache *DescriptorSetCache, view ImageView, layout ImageLayout, depth bool) *Texture {
	t := &Texture{
		cache:     cache,
		view:      view,
		layout:    layout,
		depth:     depth,
		listeners: make(map[any]func(*Texture)),
	}
	t.initRef(t.destroy)
	return t
}

func (t *Texture) View() ImageView     { return t.view }
func (t *Texture) Layout() ImageLayout { return t.layout }
func (t *Texture) IsDepth() bool       { return t.depth }

// SetPrimaryView replaces the view exposed to samplers, for example after
// the backing image is reallocated with a different mip range. The old view
// is unbound from the descriptor cache and every listener is notified so it
// can refresh whatever it derived from the old view.
func (t *Texture) SetPrimaryView(view ImageView) {
	if view == t.view {
		return
	}
	old := t.view
	t.view = view
	if t.cache != nil {
		t.cache.UnbindImageView(old)
	}
	for _, fn := range t.listeners {
		fn(t)
	}
}

// AddListener registers fn to run whenever the primary view changes. owner
// identifies the registration for RemoveListener; registering twice with
// the same owner replaces the callback.
func (t *Texture) AddListener(owner any, fn func(*Texture)) {
	t.listeners[owner] = fn
}

func (t *Texture) RemoveListener(owner any) {
	delete(t.listeners, owner)
}

func (t *Texture) destroy() {
	if t.cache != nil {
		t.cache.UnbindImageView(t.view)
	}
	t.listeners = nil
	t.view = 0
}
