package client

import (
	"net/url"
	"sync"
)

// State is attached to a history entry. Only entries pushed by the
// controller for fragment navigations have Fluid set.
type State struct {
	Fluid bool `json:"fluid"`
}

// History is the browser history API the controller drives.
type History interface {
	PushState(state State, u *url.URL)
	ReplaceState(state State, u *url.URL)
	// Back and Forward move the cursor, reporting false at either end.
	Back() bool
	Forward() bool
	State() State
	URL() *url.URL
	Len() int
}

type historyEntry struct {
	state State
	url   url.URL
}

// MemoryHistory is an in-memory History, safe for concurrent use.
type MemoryHistory struct {
	mu      sync.Mutex
	entries []historyEntry
	index   int
}

// NewMemoryHistory starts a history whose only entry is u without state.
func NewMemoryHistory(u *url.URL) *MemoryHistory {
	return &MemoryHistory{
		entries: []historyEntry{{url: *u}},
	}
}

// PushState drops every forward entry and appends a new one.
func (h *MemoryHistory) PushState(state State, u *url.URL) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries[:h.index+1], historyEntry{state: state, url: *u})
	h.index = len(h.entries) - 1
}

func (h *MemoryHistory) ReplaceState(state State, u *url.URL) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[h.index] = historyEntry{state: state, url: *u}
}

func (h *MemoryHistory) Back() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.index == 0 {
		return false
	}
	h.index--
	return true
}

func (h *MemoryHistory) Forward() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.index == len(h.entries)-1 {
		return false
	}
	h.index++
	return true
}

func (h *MemoryHistory) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.entries[h.index].state
}

// URL returns a copy of the current entry's URL.
func (h *MemoryHistory) URL() *url.URL {
	h.mu.Lock()
	defer h.mu.Unlock()

	u := h.entries[h.index].url
	return &u
}

func (h *MemoryHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.entries)
}
