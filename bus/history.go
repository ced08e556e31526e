package bus

// historyRing is a bounded circular log of published messages, oldest
// evicted first. Callers must hold the bus lock.
type historyRing struct {
	buf   []Message
	start int
	count int
}

func newHistoryRing(capacity int) *historyRing {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &historyRing{buf: make([]Message, capacity)}
}

func (r *historyRing) append(m Message) {
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = m
		r.count++
		return
	}
	// Full: overwrite the oldest entry.
	r.buf[r.start] = m
	r.start = (r.start + 1) % len(r.buf)
}

func (r *historyRing) len() int { return r.count }

// newest returns up to limit entries, newest first.
func (r *historyRing) newest(limit int) []Message {
	if limit <= 0 || limit > r.count {
		limit = r.count
	}
	out := make([]Message, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (r.start + r.count - 1 - i) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

func (r *historyRing) clear() {
	r.start = 0
	r.count = 0
}
