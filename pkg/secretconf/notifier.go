package secretconf

import (
	"sync"

	"github.com/confsync/secretconf/internal/logging"
)

// notifier fans out snapshot-change events to subscribers. Delivery is
// fire-and-forget relative to the reload loop: each handler runs on its
// own goroutine, panics are swallowed, and no ordering is guaranteed
// between subscribers.
type notifier struct {
	mu       sync.Mutex
	handlers []func(*Snapshot)
	logger   *logging.Logger
}

func newNotifier(logger *logging.Logger) *notifier {
	return &notifier{logger: logger}
}

// subscribe registers a handler for future snapshot replacements.
func (n *notifier) subscribe(handler func(*Snapshot)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers = append(n.handlers, handler)
}

// publish delivers snap to every subscriber. Called by the reload loop
// strictly after the snapshot pointer swap, so a handler re-reading the
// provider sees the new data.
func (n *notifier) publish(snap *Snapshot) {
	n.mu.Lock()
	handlers := make([]func(*Snapshot), len(n.handlers))
	copy(handlers, n.handlers)
	n.mu.Unlock()

	for _, handler := range handlers {
		go n.deliver(handler, snap)
	}
}

func (n *notifier) deliver(handler func(*Snapshot), snap *Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Warn("change handler panicked: %v", r)
		}
	}()
	handler(snap)
}
