package engine

import "sync"

// history keeps the most recent outcomes, oldest first.
type history struct {
	mu    sync.Mutex
	limit int
	items []Outcome
}

func (h *history) add(o Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, o)
	h.trimLocked()
}

func (h *history) setLimit(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.limit = n
	h.trimLocked()
}

func (h *history) trimLocked() {
	if over := len(h.items) - h.limit; over > 0 {
		h.items = append(h.items[:0:0], h.items[over:]...)
	}
}

func (h *history) list() []Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Outcome, len(h.items))
	copy(out, h.items)
	return out
}
