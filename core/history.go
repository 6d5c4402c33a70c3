package session

import (
	"sync"

	"github.com/tsubakihara/companion-core/core/chat"
)

const defaultHistoryLimit = 40

// historyWindow keeps the bounded conversation history shipped with each
// request. Entries stay in insertion order; only the most recent limit
// entries are retained.
type historyWindow struct {
	mu      sync.Mutex
	entries []chat.HistoryEntry
	limit   int
}

func newHistoryWindow(limit int) *historyWindow {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &historyWindow{limit: limit}
}

// Push appends an entry, evicting the oldest once over the limit.
func (h *historyWindow) Push(entry chat.HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, entry)
	if overflow := len(h.entries) - h.limit; overflow > 0 {
		h.entries = append([]chat.HistoryEntry(nil), h.entries[overflow:]...)
	}
}

// Window returns a copy of the retained entries, oldest first.
func (h *historyWindow) Window() []chat.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	window := make([]chat.HistoryEntry, len(h.entries))
	copy(window, h.entries)
	return window
}

// Values is an iterator over the retained entries, oldest first.
func (h *historyWindow) Values(yield func(chat.HistoryEntry) bool) {
	for _, entry := range h.Window() {
		if !yield(entry) {
			return
		}
	}
}

func (h *historyWindow) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = nil
}
