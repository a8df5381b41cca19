package resource

// slots is handle storage with a free list. Handles are 1-based indices.
// Not safe for concurrent use; Table serializes access.
type slots struct {
	entries  []entry
	freeList []Handle
}

type entry struct {
	value    any
	parent   Handle
	borrows  uint32
	valid    bool
	dropping bool
}

func newSlots() slots {
	return slots{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

func (s *slots) insert(parent Handle, value any) Handle {
	e := entry{
		value:  value,
		parent: parent,
		valid:  true,
	}

	if n := len(s.freeList); n > 0 {
		h := s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		s.entries[h-1] = e
		return h
	}

	s.entries = append(s.entries, e)
	return Handle(len(s.entries))
}

// get returns the live entry for h, or nil.
func (s *slots) get(h Handle) *entry {
	if h == 0 || int(h) > len(s.entries) {
		return nil
	}
	e := &s.entries[h-1]
	if !e.valid {
		return nil
	}
	return e
}

func (s *slots) free(h Handle) {
	s.entries[h-1] = entry{}
	s.freeList = append(s.freeList, h)
}

func (s *slots) len() int {
	n := 0
	for i := range s.entries {
		if s.entries[i].valid {
			n++
		}
	}
	return n
}

// children lists the live entries owned by parent, in handle order.
func (s *slots) children(parent Handle) []Handle {
	var out []Handle
	for i := range s.entries {
		e := &s.entries[i]
		if e.valid && e.parent == parent {
			out = append(out, Handle(i+1))
		}
	}
	return out
}
