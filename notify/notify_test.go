package notify

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	n := New()
	if n == nil {
		t.Fatal("New() returned nil")
	}
	defer n.Close()
}

func TestNew_WithAsync(t *testing.T) {
	n := New(WithAsync(100))
	if n == nil {
		t.Fatal("New() returned nil")
	}
	if !n.async {
		t.Error("expected async = true")
	}
	defer n.Close()
}

func TestChangeType_String(t *testing.T) {
	tests := []struct {
		ct   ChangeType
		want string
	}{
		{ChangeSet, "set"},
		{ChangeAdd, "add"},
		{ChangeRemove, "remove"},
		{ChangeClear, "clear"},
		{ChangeReload, "reload"},
		{ChangeType(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.ct.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.ct, got, tt.want)
		}
	}
}

func TestNotifier_Subscribe(t *testing.T) {
	n := New()
	defer n.Close()

	var received atomic.Bool

	sub := n.Subscribe(func(change Change) {
		received.Store(true)
	})

	n.Notify(Change{Key: "test", Type: ChangeSet})

	if !received.Load() {
		t.Error("observer did not receive notification")
	}

	sub.Unsubscribe()

	received.Store(false)
	n.Notify(Change{Key: "test2", Type: ChangeSet})

	if received.Load() {
		t.Error("unsubscribed observer received notification")
	}
}

func TestNotifier_SubscribeKey(t *testing.T) {
	n := New()
	defer n.Close()

	var tableChanges, fieldChanges atomic.Int32

	n.SubscribeKey("tables", func(change Change) {
		tableChanges.Add(1)
	})
	n.SubscribeKey("tables.table(0).fields", func(change Change) {
		fieldChanges.Add(1)
	})

	n.NotifySet("tables.table(0).name", "users", "customers", "test")
	n.NotifySet("tables.table(0).fields.field(1).name", nil, "uid", "test")
	// Exact match counts too
	n.NotifySet("tables", nil, "x", "test")
	// Different subtree
	n.NotifySet("database", nil, "y", "test")

	if tableChanges.Load() != 3 {
		t.Errorf("tables observer received %d changes, want 3", tableChanges.Load())
	}
	if fieldChanges.Load() != 1 {
		t.Errorf("fields observer received %d changes, want 1", fieldChanges.Load())
	}
}

func TestNotifier_SubscriptionCount(t *testing.T) {
	n := New()
	defer n.Close()

	if n.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", n.SubscriptionCount())
	}

	sub1 := n.Subscribe(func(Change) {})
	sub2 := n.SubscribeKey("tables", func(Change) {})

	if n.SubscriptionCount() != 2 {
		t.Errorf("SubscriptionCount() = %d, want 2", n.SubscriptionCount())
	}

	sub1.Unsubscribe()
	sub2.Unsubscribe()

	if n.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d after unsubscribe, want 0", n.SubscriptionCount())
	}
}

func TestNotifier_NotifySet(t *testing.T) {
	n := New()
	defer n.Close()

	var receivedChange Change

	n.Subscribe(func(change Change) {
		receivedChange = change
	})

	n.NotifySet("tables.table(0).name", "users", "customers", "user")

	if receivedChange.Key != "tables.table(0).name" {
		t.Errorf("Key = %q, want 'tables.table(0).name'", receivedChange.Key)
	}
	if receivedChange.Type != ChangeSet {
		t.Errorf("Type = %v, want ChangeSet", receivedChange.Type)
	}
	if receivedChange.OldValue != "users" {
		t.Errorf("OldValue = %v, want 'users'", receivedChange.OldValue)
	}
	if receivedChange.NewValue != "customers" {
		t.Errorf("NewValue = %v, want 'customers'", receivedChange.NewValue)
	}
	if receivedChange.Source != "user" {
		t.Errorf("Source = %q, want 'user'", receivedChange.Source)
	}
}

func TestNotifier_NotifyRemove(t *testing.T) {
	n := New()
	defer n.Close()

	var receivedChange Change

	n.Subscribe(func(change Change) {
		receivedChange = change
	})

	n.NotifyRemove("tables.table(1)", "documents", "user")

	if receivedChange.Type != ChangeRemove {
		t.Errorf("Type = %v, want ChangeRemove", receivedChange.Type)
	}
	if receivedChange.OldValue != "documents" {
		t.Errorf("OldValue = %v, want 'documents'", receivedChange.OldValue)
	}
}

func TestNotifier_NotifyReload(t *testing.T) {
	n := New()
	defer n.Close()

	var globalReceived, keyReceived atomic.Bool

	n.Subscribe(func(change Change) {
		if change.Type == ChangeReload {
			globalReceived.Store(true)
		}
	})
	n.SubscribeKey("tables", func(change Change) {
		if change.Type == ChangeReload {
			keyReceived.Store(true)
		}
	})

	n.NotifyReload("file")

	if !globalReceived.Load() {
		t.Error("global observer did not receive reload")
	}
	if !keyReceived.Load() {
		t.Error("key observer did not receive reload")
	}
}

func TestNotifier_Async(t *testing.T) {
	n := New(WithAsync(100))
	defer n.Close()

	var received atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)

	n.Subscribe(func(change Change) {
		received.Store(true)
		wg.Done()
	})

	n.Notify(Change{Key: "test", Type: ChangeSet})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if !received.Load() {
			t.Error("async observer did not receive notification")
		}
	case <-time.After(1 * time.Second):
		t.Error("timeout waiting for async notification")
	}
}

func TestNotifier_MultipleObservers(t *testing.T) {
	n := New()
	defer n.Close()

	var count1, count2, count3 atomic.Int32

	n.Subscribe(func(change Change) {
		count1.Add(1)
	})
	n.Subscribe(func(change Change) {
		count2.Add(1)
	})
	n.SubscribeKey("tables", func(change Change) {
		count3.Add(1)
	})

	n.NotifySet("tables.table(0).name", nil, "users", "test")

	if count1.Load() != 1 {
		t.Error("global observer 1 did not receive notification")
	}
	if count2.Load() != 1 {
		t.Error("global observer 2 did not receive notification")
	}
	if count3.Load() != 1 {
		t.Error("key observer did not receive notification")
	}
}

func TestSubscription_Unsubscribe(t *testing.T) {
	n := New()
	defer n.Close()

	var count atomic.Int32

	sub := n.Subscribe(func(change Change) {
		count.Add(1)
	})

	n.Notify(Change{Key: "test", Type: ChangeSet})
	if count.Load() != 1 {
		t.Error("observer should receive first notification")
	}

	sub.Unsubscribe()

	n.Notify(Change{Key: "test", Type: ChangeSet})
	if count.Load() != 1 {
		t.Error("unsubscribed observer should not receive second notification")
	}

	// Unsubscribe again should be safe
	sub.Unsubscribe()
}

func TestBatch_Basic(t *testing.T) {
	n := New()
	defer n.Close()

	var changes []Change
	var mu sync.Mutex

	n.Subscribe(func(change Change) {
		mu.Lock()
		changes = append(changes, change)
		mu.Unlock()
	})

	batch := n.NewBatch()
	batch.Add(Change{Key: "tables.table(0).name", Type: ChangeSet, NewValue: "users"})
	batch.Add(Change{Key: "tables.table(1).name", Type: ChangeSet, NewValue: "documents"})
	batch.Add(Change{Key: "database", Type: ChangeAdd, NewValue: "prod"})

	if batch.Len() != 3 {
		t.Errorf("Len() = %d, want 3", batch.Len())
	}

	// Changes not sent yet
	mu.Lock()
	if len(changes) != 0 {
		t.Error("changes sent before Commit()")
	}
	mu.Unlock()

	batch.Commit()

	mu.Lock()
	if len(changes) != 3 {
		t.Errorf("received %d changes after Commit(), want 3", len(changes))
	}
	mu.Unlock()

	if batch.Len() != 0 {
		t.Errorf("Len() = %d after Commit(), want 0", batch.Len())
	}
}

func TestBatch_Discard(t *testing.T) {
	n := New()
	defer n.Close()

	var count atomic.Int32

	n.Subscribe(func(change Change) {
		count.Add(1)
	})

	batch := n.NewBatch()
	batch.Add(Change{Key: "a", Type: ChangeSet, NewValue: 1})
	batch.Add(Change{Key: "b", Type: ChangeSet, NewValue: 2})

	batch.Discard()

	if batch.Len() != 0 {
		t.Errorf("Len() = %d after Discard(), want 0", batch.Len())
	}

	if count.Load() != 0 {
		t.Error("observer received notification after Discard()")
	}
}

func TestIsAncestorKey(t *testing.T) {
	tests := []struct {
		ancestor string
		key      string
		want     bool
	}{
		{"tables", "tables.table(0).name", true},
		{"tables.table(0)", "tables.table(0).fields.field(1)", true},
		{"tables.table", "tables.table(0)", true},
		{"tables.table(0)", "tables.table(0)[@type]", true},
		{"", "tables", true},
		{"tables", "tables", false},
		{"tables", "database", false},
		{"tables", "tablesExtra", false},
		{"tables.tab", "tables.table", false},
	}

	for _, tt := range tests {
		got := isAncestorKey(tt.ancestor, tt.key)
		if got != tt.want {
			t.Errorf("isAncestorKey(%q, %q) = %v, want %v", tt.ancestor, tt.key, got, tt.want)
		}
	}
}

func TestNotifier_ConcurrentAccess(t *testing.T) {
	n := New()
	defer n.Close()

	var count atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n.Subscribe(func(change Change) {
				count.Add(1)
			})
		}()
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n.NotifySet("test", nil, i, "test")
		}(i)
	}
	wg.Wait()

	// Each of 10 observers should receive 10 notifications
	expected := int32(100)
	if count.Load() != expected {
		t.Errorf("count = %d, want %d", count.Load(), expected)
	}
}

func TestNotifier_CloseIdempotent(t *testing.T) {
	n := New()

	n.Close()
	n.Close()
	n.Close()

	// Notify after close should not panic
	n.Notify(Change{Key: "test", Type: ChangeSet})
}

func TestNotifier_CloseIdempotentAsync(t *testing.T) {
	n := New(WithAsync(100))

	n.Close()
	n.Close()
	n.Close()

	// Notify after close should not panic or block
	n.Notify(Change{Key: "test", Type: ChangeSet})
}
