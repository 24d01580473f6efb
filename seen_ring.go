package main

// seenRing is a fixed-capacity set of event IDs. Inserting into a full ring
// evicts the oldest slot.
type seenRing struct {
	ids   []int64
	index map[int64]int // id -> slot holding it
	head  int           // next slot to write
	size  int           // occupied slots, including slots freed by Remove
	// onEvict, if set, is called with every live ID pushed out of the ring.
	onEvict func(id int64)
}

func newSeenRing(capacity int) *seenRing {
	if capacity < 1 {
		capacity = 1
	}
	return &seenRing{
		ids:   make([]int64, capacity),
		index: make(map[int64]int, capacity),
	}
}

func (r *seenRing) Contains(id int64) bool {
	_, ok := r.index[id]
	return ok
}

// Add inserts id. Adding an ID that is already present is a no-op.
func (r *seenRing) Add(id int64) {
	if r.Contains(id) {
		return
	}
	if r.size == len(r.ids) {
		old := r.ids[r.head]
		if slot, ok := r.index[old]; ok && slot == r.head {
			delete(r.index, old)
			if r.onEvict != nil {
				r.onEvict(old)
			}
		}
	} else {
		r.size++
	}
	r.ids[r.head] = id
	r.index[id] = r.head
	r.head = (r.head + 1) % len(r.ids)
}

// Remove drops id from the set. Its slot is reclaimed when the ring wraps
// around to it, so removal never changes the eviction order of other IDs.
func (r *seenRing) Remove(id int64) {
	delete(r.index, id)
}

func (r *seenRing) Len() int { return len(r.index) }

func (r *seenRing) Cap() int { return len(r.ids) }

// IDs returns the live IDs, oldest first.
func (r *seenRing) IDs() []int64 {
	out := make([]int64, 0, len(r.index))
	start := (r.head - r.size + len(r.ids)) % len(r.ids)
	for i := 0; i < r.size; i++ {
		slot := (start + i) % len(r.ids)
		id := r.ids[slot]
		if s, ok := r.index[id]; ok && s == slot {
			out = append(out, id)
		}
	}
	return out
}
