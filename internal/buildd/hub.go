package buildd

import (
	"sync"

	"github.com/onewithdev/peterbot-sandbox/pkg/types"
)

// Hub fans out live build log entries to subscribers (the websocket tail).
// Subscribers attaching mid-build receive the buffered entries first, so
// every subscriber observes the full stream in order.
type Hub struct {
	mu     sync.Mutex
	builds map[string]*buildStream
}

type buildStream struct {
	entries []types.BuildLogEntry
	subs    map[chan types.BuildLogEntry]struct{}
	done    bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{builds: make(map[string]*buildStream)}
}

// Open registers a build as active.
func (h *Hub) Open(buildID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.builds[buildID] = &buildStream{
		subs: make(map[chan types.BuildLogEntry]struct{}),
	}
}

// Publish delivers an entry to all subscribers of a build. Slow
// subscribers are dropped rather than blocking the build.
func (h *Hub) Publish(buildID string, entry types.BuildLogEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.builds[buildID]
	if !ok {
		return
	}
	s.entries = append(s.entries, entry)
	for ch := range s.subs {
		select {
		case ch <- entry:
		default:
			delete(s.subs, ch)
			close(ch)
		}
	}
}

// Close marks a build finished and closes all subscriber channels. The
// buffered entries are released; finished builds serve logs from the store.
func (h *Hub) Close(buildID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.builds[buildID]
	if !ok {
		return
	}
	s.done = true
	for ch := range s.subs {
		close(ch)
	}
	delete(h.builds, buildID)
}

// Subscribe attaches to a live build. The returned channel first replays
// entries published so far, then delivers new ones; it is closed when the
// build finishes. ok is false if the build is not active.
func (h *Hub) Subscribe(buildID string) (<-chan types.BuildLogEntry, func(), bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.builds[buildID]
	if !ok {
		return nil, nil, false
	}

	// Buffer sized for the replay plus live headroom.
	ch := make(chan types.BuildLogEntry, len(s.entries)+256)
	for _, e := range s.entries {
		ch <- e
	}
	s.subs[ch] = struct{}{}

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if s, ok := h.builds[buildID]; ok {
			if _, subscribed := s.subs[ch]; subscribed {
				delete(s.subs, ch)
				close(ch)
			}
		}
	}
	return ch, cancel, true
}
