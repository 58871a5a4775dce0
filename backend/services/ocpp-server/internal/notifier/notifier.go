package notifier

import (
	"sync"

	"go.uber.org/zap"
)

type observer struct {
	id int
	fn func()
}

// Notifier fans a "state changed" signal out to an explicit list of observers. Signals carry
// no payload; observers re-read the latest snapshot.
type Notifier struct {
	mu        sync.RWMutex
	nextID    int
	observers []observer
	logger    *zap.Logger
}

// New returns an empty notifier.
func New(logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{logger: logger}
}

// Subscribe adds fn and returns a func that removes it again.
func (n *Notifier) Subscribe(fn func()) func() {
	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.observers = append(n.observers, observer{id: id, fn: fn})
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { n.remove(id) })
	}
}

// Notify calls every observer in subscription order. A panicking observer is logged and
// skipped.
func (n *Notifier) Notify() {
	n.mu.RLock()
	observers := make([]observer, len(n.observers))
	copy(observers, n.observers)
	n.mu.RUnlock()

	for _, o := range observers {
		n.call(o)
	}
}

// Len returns the number of observers.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.observers)
}

func (n *Notifier) call(o observer) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("state observer panicked", zap.Int("observer", o.id), zap.Any("panic", r))
		}
	}()
	o.fn()
}

func (n *Notifier) remove(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, o := range n.observers {
		if o.id == id {
			n.observers = append(n.observers[:i:i], n.observers[i+1:]...)
			return
		}
	}
}
