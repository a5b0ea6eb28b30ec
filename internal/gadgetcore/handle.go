package gadgetcore

// Handle is a generational index: Slot identifies a slot in a Table
// and Gen distinguishes successive occupants of that slot so a stale
// Handle to a removed Function can never be mistaken for whatever was
// created in its place afterward. This is how Gadget <-> Function
// back-references stay safe without Go pointers aliasing through
// map-reallocation.
type Handle struct {
	Slot uint32
	Gen  uint32
}

// Zero reports whether h is the unset handle.
func (h Handle) Zero() bool { return h.Gen == 0 }

// Table is a generational-index arena of T, addressed by Handle.
type Table[T any] struct {
	entries []tableEntry[T]
	free    []uint32
}

type tableEntry[T any] struct {
	gen   uint32
	value T
	live  bool
}

// Insert stores value in a free slot (reusing one from a prior Remove
// when available) and returns its Handle.
func (t *Table[T]) Insert(value T) Handle {
	if n := len(t.free); n > 0 {
		slot := t.free[n-1]
		t.free = t.free[:n-1]
		e := &t.entries[slot]
		e.value = value
		e.live = true
		return Handle{Slot: slot, Gen: e.gen}
	}
	t.entries = append(t.entries, tableEntry[T]{gen: 1, value: value, live: true})
	return Handle{Slot: uint32(len(t.entries) - 1), Gen: 1}
}

// Get returns the value stored at h and whether h is still live.
func (t *Table[T]) Get(h Handle) (T, bool) {
	var zero T
	if int(h.Slot) >= len(t.entries) {
		return zero, false
	}
	e := &t.entries[h.Slot]
	if !e.live || e.gen != h.Gen {
		return zero, false
	}
	return e.value, true
}

// Set overwrites the value stored at h, reporting whether h was live.
func (t *Table[T]) Set(h Handle, value T) bool {
	if int(h.Slot) >= len(t.entries) {
		return false
	}
	e := &t.entries[h.Slot]
	if !e.live || e.gen != h.Gen {
		return false
	}
	e.value = value
	return true
}

// Remove invalidates h and advances its generation so future Inserts
// reusing the slot produce handles that compare unequal to h.
func (t *Table[T]) Remove(h Handle) bool {
	if int(h.Slot) >= len(t.entries) {
		return false
	}
	e := &t.entries[h.Slot]
	if !e.live || e.gen != h.Gen {
		return false
	}
	var zero T
	e.value = zero
	e.live = false
	e.gen++
	t.free = append(t.free, h.Slot)
	return true
}

// Handles returns a snapshot of every currently live handle, in slot
// order. Like the registry's name listing, this is a point-in-time
// copy, not a restartable iterator.
func (t *Table[T]) Handles() []Handle {
	out := make([]Handle, 0, len(t.entries))
	for i := range t.entries {
		if t.entries[i].live {
			out = append(out, Handle{Slot: uint32(i), Gen: t.entries[i].gen})
		}
	}
	return out
}
