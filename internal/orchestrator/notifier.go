package orchestrator

import "sync"

// notifier is a broadcast-once wakeup signal: it emulates a condition
// variable's "wake every waiter" semantics with a channel instead of a lock.
// Each notifyAll closes the current channel, waking everyone blocked on
// wait(), then swaps in a fresh one for the next round of waiters.
type notifier struct {
	mu sync.Mutex
	ch chan struct{}
}

func newNotifier() *notifier {
	return &notifier{ch: make(chan struct{})}
}

func (n *notifier) wait() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ch
}

func (n *notifier) notifyAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	close(n.ch)
	n.ch = make(chan struct{})
}
