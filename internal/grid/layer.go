package grid

// UpdateOption selects how writes to a layer become visible.
type UpdateOption uint8

const (
	// NoSwitch makes writes visible immediately. Suitable for static overlays.
	NoSwitch UpdateOption = iota
	// NextBecomesCurrent buffers writes made during a step and publishes them
	// when the step ends, so every read in a step sees the prior generation.
	NextBecomesCurrent
)

// String returns the option name.
func (o UpdateOption) String() string {
	switch o {
	case NextBecomesCurrent:
		return "NEXT_BECOMES_CURRENT"
	default:
		return "NO_SWITCH"
	}
}

// Layer is one named plane of cell values.
// A nil cell is empty; strings act as tags; anything else is an opaque payload.
type Layer struct {
	name   string
	w, h   int
	option UpdateOption

	cur []any
	nxt []any // only allocated for NextBecomesCurrent

	stepping bool
	dirty    bool

	base  []any // generation current when the step began
	saved bool
}

func newLayer(name string, w, h int, option UpdateOption) *Layer {
	l := &Layer{name: name, w: w, h: h}
	l.cur = make([]any, w*h)
	l.SetUpdateOption(option)
	return l
}

// Name returns the layer name.
func (l *Layer) Name() string { return l.name }

// Size returns the layer dimensions.
func (l *Layer) Size() (int, int) { return l.w, l.h }

// UpdateOption returns the layer's update discipline.
func (l *Layer) UpdateOption() UpdateOption { return l.option }

// SetUpdateOption switches the update discipline. Pending buffered writes are
// published first so nothing is lost.
func (l *Layer) SetUpdateOption(option UpdateOption) {
	if l.option == NextBecomesCurrent && l.nxt != nil {
		l.Publish()
	}
	l.option = option
	if option == NextBecomesCurrent {
		l.nxt = make([]any, len(l.cur))
		copy(l.nxt, l.cur)
	} else {
		l.nxt = nil
	}
}

func (l *Layer) inBounds(x, y int) bool {
	return x >= 0 && x < l.w && y >= 0 && y < l.h
}

// Get returns the current value at (x, y).
func (l *Layer) Get(x, y int) (any, error) {
	if !l.inBounds(x, y) {
		return nil, &BoundsError{Layer: l.name, X: x, Y: y, W: l.w, H: l.h}
	}
	return l.cur[y*l.w+x], nil
}

// At returns the current value at (x, y), or nil when out of bounds.
func (l *Layer) At(x, y int) any {
	if !l.inBounds(x, y) {
		return nil
	}
	return l.cur[y*l.w+x]
}

// Set writes v at (x, y). Under NextBecomesCurrent a write made while a step
// is in progress lands in the next generation only.
func (l *Layer) Set(x, y int, v any) error {
	if !l.inBounds(x, y) {
		return &BoundsError{Layer: l.name, X: x, Y: y, W: l.w, H: l.h}
	}
	l.write(y*l.w+x, v)
	return nil
}

func (l *Layer) write(idx int, v any) {
	if l.option != NextBecomesCurrent {
		l.cur[idx] = v
		return
	}
	l.nxt[idx] = v
	if l.stepping {
		l.dirty = true
		return
	}
	l.cur[idx] = v
}

// Fill writes v into every cell.
func (l *Layer) Fill(v any) {
	for i := range l.cur {
		l.write(i, v)
	}
}

// Count returns the number of cells whose current value satisfies match.
func (l *Layer) Count(match func(v any) bool) int {
	n := 0
	for _, v := range l.cur {
		if match(v) {
			n++
		}
	}
	return n
}

// Count8Neighbors counts neighbors of (x, y) in the 8-connected neighborhood
// whose current value satisfies match. Off-grid neighbors are not counted.
func (l *Layer) Count8Neighbors(x, y int, match func(v any) bool) (int, error) {
	if !l.inBounds(x, y) {
		return 0, &BoundsError{Layer: l.name, X: x, Y: y, W: l.w, H: l.h}
	}
	n := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := x+dx, y+dy
			if !l.inBounds(nx, ny) {
				continue
			}
			if match(l.cur[ny*l.w+nx]) {
				n++
			}
		}
	}
	return n, nil
}

// Cells returns a copy of the current generation in row-major order.
func (l *Layer) Cells() []any {
	out := make([]any, len(l.cur))
	copy(out, l.cur)
	return out
}

// BeginStep holds back buffered writes until Publish.
func (l *Layer) BeginStep() {
	l.stepping = true
}

// Publish makes the next generation current. Cells not written during the
// step carry over unchanged because nxt always starts as a copy of cur.
func (l *Layer) Publish() {
	if l.option != NextBecomesCurrent || !l.dirty {
		return
	}
	if l.stepping && !l.saved {
		if len(l.base) != len(l.cur) {
			l.base = make([]any, len(l.cur))
		}
		copy(l.base, l.cur)
		l.saved = true
	}
	l.cur, l.nxt = l.nxt, l.cur
	copy(l.nxt, l.cur)
	l.dirty = false
}

// EndStep publishes and leaves step mode.
func (l *Layer) EndStep() {
	l.Publish()
	l.stepping = false
	l.saved = false
}

// Discard drops every buffered write made since BeginStep, including writes
// already published mid-step, and leaves step mode. NoSwitch writes are not
// buffered and stay.
func (l *Layer) Discard() {
	if l.option == NextBecomesCurrent {
		if l.saved {
			copy(l.cur, l.base)
		}
		copy(l.nxt, l.cur)
	}
	l.dirty = false
	l.stepping = false
	l.saved = false
}
