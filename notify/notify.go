// Package notify provides change notification for configuration trees.
//
// The tree core stays decoupled from any concrete event system: mutations
// produce change descriptors, and a Notifier fans them out to registered
// observers. Observers may subscribe to every change or to changes under a
// specific key prefix.
package notify

import (
	"sync"
)

// ChangeType represents the kind of structural change.
type ChangeType int

const (
	// ChangeSet indicates a value or attribute was set or updated.
	ChangeSet ChangeType = iota

	// ChangeAdd indicates a node or attribute was added.
	ChangeAdd

	// ChangeRemove indicates a node, value, or attribute was removed.
	ChangeRemove

	// ChangeClear indicates a subtree was emptied.
	ChangeClear

	// ChangeReload indicates the whole tree was replaced.
	ChangeReload
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeSet:
		return "set"
	case ChangeAdd:
		return "add"
	case ChangeRemove:
		return "remove"
	case ChangeClear:
		return "clear"
	case ChangeReload:
		return "reload"
	default:
		return "unknown"
	}
}

// Change represents one configuration change event.
type Change struct {
	// Key is the canonical key of the affected location. Empty for reload
	// events.
	Key string

	// Type is the kind of change.
	Type ChangeType

	// OldValue is the previous value (may be nil).
	OldValue any

	// NewValue is the new value (nil for removals).
	NewValue any

	// Source identifies where the change came from.
	Source string
}

// Observer is called when a configuration change occurs.
type Observer func(change Change)

// Subscription represents an active observer registration.
type Subscription struct {
	id       uint64
	key      string
	notifier *Notifier
}

// Unsubscribe removes this subscription.
func (s *Subscription) Unsubscribe() {
	if s.notifier != nil {
		s.notifier.unsubscribe(s.id)
	}
}

// Notifier manages change subscriptions and delivery.
type Notifier struct {
	mu sync.RWMutex

	// Observers that receive all changes
	globalObservers map[uint64]Observer

	// Observers scoped to a key prefix
	keyObservers map[string]map[uint64]Observer

	nextID uint64

	// Asynchronous delivery
	async  bool
	buffer chan Change
	done   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithAsync enables asynchronous notification delivery.
func WithAsync(bufferSize int) Option {
	return func(n *Notifier) {
		if bufferSize > 0 {
			n.async = true
			n.buffer = make(chan Change, bufferSize)
		}
	}
}

// New creates a new Notifier.
func New(opts ...Option) *Notifier {
	n := &Notifier{
		globalObservers: make(map[uint64]Observer),
		keyObservers:    make(map[string]map[uint64]Observer),
		done:            make(chan struct{}),
	}

	for _, opt := range opts {
		opt(n)
	}

	if n.async {
		n.wg.Add(1)
		go n.processAsync()
	}

	return n
}

// Subscribe registers an observer for all changes.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.globalObservers[id] = observer

	return &Subscription{id: id, notifier: n}
}

// SubscribeKey registers an observer for changes at or below a key.
// Subscribing to "tables" receives changes to "tables.table(0).name".
func (n *Notifier) SubscribeKey(key string, observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++

	if n.keyObservers[key] == nil {
		n.keyObservers[key] = make(map[uint64]Observer)
	}
	n.keyObservers[key][id] = observer

	return &Subscription{id: id, key: key, notifier: n}
}

// SubscriptionCount returns the number of active subscriptions.
func (n *Notifier) SubscriptionCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()

	count := len(n.globalObservers)
	for _, observers := range n.keyObservers {
		count += len(observers)
	}
	return count
}

// Notify sends a change to all relevant observers.
func (n *Notifier) Notify(change Change) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}
	n.mu.RUnlock()

	if n.async {
		select {
		case n.buffer <- change:
		case <-n.done:
		}
		return
	}

	n.deliverChange(change)
}

// NotifySet is a convenience method for set changes.
func (n *Notifier) NotifySet(key string, oldValue, newValue any, source string) {
	n.Notify(Change{
		Key:      key,
		Type:     ChangeSet,
		OldValue: oldValue,
		NewValue: newValue,
		Source:   source,
	})
}

// NotifyRemove is a convenience method for removals.
func (n *Notifier) NotifyRemove(key string, oldValue any, source string) {
	n.Notify(Change{
		Key:      key,
		Type:     ChangeRemove,
		OldValue: oldValue,
		Source:   source,
	})
}

// NotifyReload is a convenience method for full-tree replacement.
func (n *Notifier) NotifyReload(source string) {
	n.Notify(Change{
		Type:   ChangeReload,
		Source: source,
	})
}

// Close shuts down the notifier. It is safe to call Close multiple times.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.mu.Unlock()

	close(n.done)
	n.wg.Wait()
}

// unsubscribe removes an observer by ID.
func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.globalObservers, id)

	for key, observers := range n.keyObservers {
		delete(observers, id)
		if len(observers) == 0 {
			delete(n.keyObservers, key)
		}
	}
}

// deliverChange sends a change to all matching observers.
func (n *Notifier) deliverChange(change Change) {
	n.mu.RLock()

	var observers []Observer

	for _, obs := range n.globalObservers {
		observers = append(observers, obs)
	}

	if change.Key != "" {
		if keyObs, ok := n.keyObservers[change.Key]; ok {
			for _, obs := range keyObs {
				observers = append(observers, obs)
			}
		}

		// Ancestor keys observe their whole subtree
		for key, keyObs := range n.keyObservers {
			if isAncestorKey(key, change.Key) {
				for _, obs := range keyObs {
					observers = append(observers, obs)
				}
			}
		}
	} else {
		// Reload events reach every key observer
		for _, keyObs := range n.keyObservers {
			for _, obs := range keyObs {
				observers = append(observers, obs)
			}
		}
	}

	n.mu.RUnlock()

	// Call observers outside the lock
	for _, obs := range observers {
		obs(change)
	}
}

// processAsync handles asynchronous notification delivery.
func (n *Notifier) processAsync() {
	defer n.wg.Done()

	for {
		select {
		case change := <-n.buffer:
			n.deliverChange(change)
		case <-n.done:
			// Drain remaining buffered changes
			for {
				select {
				case change := <-n.buffer:
					n.deliverChange(change)
				default:
					return
				}
			}
		}
	}
}

// isAncestorKey checks whether ancestor addresses a node above key.
// "tables" is an ancestor of "tables.table(0).name".
func isAncestorKey(ancestor, key string) bool {
	if len(ancestor) >= len(key) {
		return false
	}
	if ancestor == "" {
		return true
	}
	if key[:len(ancestor)] != ancestor {
		return false
	}
	// the boundary may be a dot, an index, or an attribute marker
	switch key[len(ancestor)] {
	case '.', '(', '[':
		return true
	default:
		return false
	}
}

// Batch collects multiple changes and delivers them as a group, so a
// compound edit notifies once per affected location after it completes.
type Batch struct {
	notifier *Notifier
	changes  []Change
	mu       sync.Mutex
}

// NewBatch creates a new batch for collecting changes.
func (n *Notifier) NewBatch() *Batch {
	return &Batch{
		notifier: n,
		changes:  make([]Change, 0),
	}
}

// Add adds a change to the batch.
func (b *Batch) Add(change Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.changes = append(b.changes, change)
}

// Commit sends all batched changes to observers.
func (b *Batch) Commit() {
	b.mu.Lock()
	changes := b.changes
	b.changes = make([]Change, 0)
	b.mu.Unlock()

	for _, change := range changes {
		b.notifier.Notify(change)
	}
}

// Discard clears the batch without sending notifications.
func (b *Batch) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.changes = make([]Change, 0)
}

// Len returns the number of pending changes.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.changes)
}
