package core

// Ring is a fixed-capacity byte FIFO that drops the oldest byte when full.
//
// A Ring has no lock of its own. It is shared between exactly one producer
// and one consumer, each pinned to one execution context (interrupt or
// foreground), and every index update runs inside a short
// DisableInterrupts/RestoreInterrupts section.
type Ring struct {
	buf   []byte
	head  int // next write position
	tail  int // oldest unread byte
	count int
}

// NewRing allocates a Ring with the given capacity. Capacity must be positive.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		panic("core: ring capacity must be positive")
	}
	return &Ring{buf: make([]byte, capacity)}
}

// Push appends b. When the ring is full the oldest byte is evicted first and
// Push returns false so the caller can count the overflow; b is stored either way.
func (r *Ring) Push(b byte) bool {
	state := DisableInterrupts()
	ok := r.push(b)
	RestoreInterrupts(state)
	return ok
}

func (r *Ring) push(b byte) bool {
	ok := true
	if r.count == len(r.buf) {
		r.tail = (r.tail + 1) % len(r.buf)
		r.count--
		ok = false
	}
	r.buf[r.head] = b
	r.head = (r.head + 1) % len(r.buf)
	r.count++
	return ok
}

// Pop removes and returns the oldest byte. ok is false iff the ring is empty.
func (r *Ring) Pop() (b byte, ok bool) {
	state := DisableInterrupts()
	b, ok = r.pop()
	RestoreInterrupts(state)
	return b, ok
}

func (r *Ring) pop() (byte, bool) {
	if r.count == 0 {
		return 0, false
	}
	b := r.buf[r.tail]
	r.tail = (r.tail + 1) % len(r.buf)
	r.count--
	return b, true
}

// Write pushes every byte of p and reports how many older bytes were evicted
// to make room.
func (r *Ring) Write(p []byte) (n, evicted int) {
	state := DisableInterrupts()
	for _, b := range p {
		if !r.push(b) {
			evicted++
		}
	}
	RestoreInterrupts(state)
	return len(p), evicted
}

// Read pops up to len(p) bytes into p, oldest first.
func (r *Ring) Read(p []byte) int {
	state := DisableInterrupts()
	n := 0
	for n < len(p) {
		b, ok := r.pop()
		if !ok {
			break
		}
		p[n] = b
		n++
	}
	RestoreInterrupts(state)
	return n
}

// Available returns the number of unread bytes.
func (r *Ring) Available() int {
	state := DisableInterrupts()
	n := r.count
	RestoreInterrupts(state)
	return n
}

// Free returns the number of bytes that can be pushed without eviction.
func (r *Ring) Free() int {
	state := DisableInterrupts()
	n := len(r.buf) - r.count
	RestoreInterrupts(state)
	return n
}

// Cap returns the fixed capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Clear empties the ring. The backing storage is left as is.
func (r *Ring) Clear() {
	state := DisableInterrupts()
	r.head = 0
	r.tail = 0
	r.count = 0
	RestoreInterrupts(state)
}
