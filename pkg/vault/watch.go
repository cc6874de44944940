package vault

import "sync"

// Hub fans out change notifications to long-poll waiters. Subscribers get a
// buffered wake-up channel; a notification is a hint to re-query the
// changelog, never a payload, so a missed edge only costs one poll interval.
type Hub struct {
	mu      sync.Mutex
	global  map[chan struct{}]struct{}
	folders map[string]map[chan struct{}]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		global:  make(map[chan struct{}]struct{}),
		folders: make(map[string]map[chan struct{}]struct{}),
	}
}

// SubscribeGlobal registers a waiter for any change. The cancel func must be
// called when the waiter is done.
func (h *Hub) SubscribeGlobal() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	h.global[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.global, ch)
		h.mu.Unlock()
	}
}

// SubscribeFolder registers a waiter for changes in one folder.
func (h *Hub) SubscribeFolder(folderPath string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	set, ok := h.folders[folderPath]
	if !ok {
		set = make(map[chan struct{}]struct{})
		h.folders[folderPath] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		if set, ok := h.folders[folderPath]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.folders, folderPath)
			}
		}
		h.mu.Unlock()
	}
}

// Notify wakes global waiters and the waiters of the given folder. Sends are
// non-blocking; a full buffer means the waiter already has a pending wake-up.
func (h *Hub) Notify(folderPath string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.global {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	for ch := range h.folders[folderPath] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
