package server

import "sync"

// Notifier broadcasts registry reloads to subscribed event streams. Each
// listener receives the generation of the most recent reload.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan uint64]struct{}
}

// NewNotifier creates a notifier without listeners.
func NewNotifier() *Notifier {
	return &Notifier{listeners: make(map[chan uint64]struct{})}
}

// Subscribe returns a channel receiving reload generations. The caller must
// call Unsubscribe when done.
func (n *Notifier) Subscribe() chan uint64 {
	ch := make(chan uint64, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener and closes its channel.
func (n *Notifier) Unsubscribe(ch chan uint64) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Len returns the number of listeners.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}

// Broadcast sends gen to every listener without blocking. A listener that
// has not consumed the previous generation gets it replaced by gen.
func (n *Notifier) Broadcast(gen uint64) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- gen:
			continue
		default:
		}
		// Drop the stale generation, then retry once.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- gen:
		default:
		}
	}
}
