package notify

import (
	"sync"
	"testing"
	"time"
)

func TestShow_AppendsInCallOrder(t *testing.T) {
	b := NewBus()
	first := b.Show("one", TypeInfo, 0)
	second := b.Show("two", TypeSuccess, 0)

	if first >= second {
		t.Errorf("ids not monotonic: %d then %d", first, second)
	}
	pending := b.Pending()
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].Message != "one" || pending[1].Message != "two" {
		t.Errorf("order = [%q %q], want call order", pending[0].Message, pending[1].Message)
	}
}

func TestRemove_UnknownIDIsNoOp(t *testing.T) {
	b := NewBus()
	b.Show("keep", TypeInfo, 0)
	b.Remove(999)
	if len(b.Pending()) != 1 {
		t.Errorf("pending = %d, want 1", len(b.Pending()))
	}
}

func TestRemove_OutOfOrder(t *testing.T) {
	b := NewBus()
	a := b.Show("a", TypeInfo, 0)
	m := b.Show("b", TypeInfo, 0)
	c := b.Show("c", TypeInfo, 0)

	b.Remove(m)
	pending := b.Pending()
	if len(pending) != 2 || pending[0].ID != a || pending[1].ID != c {
		t.Errorf("pending after middle removal = %v", pending)
	}
}

func TestShow_AutoExpires(t *testing.T) {
	b := NewBus()

	var mu sync.Mutex
	removed := make(map[int64]bool)
	done := make(chan int64, 1)
	b.Subscribe(Listener{Removed: func(id int64) {
		mu.Lock()
		removed[id] = true
		mu.Unlock()
		done <- id
	}})

	id := b.Show("ephemeral", TypeInfo, 10*time.Millisecond)

	select {
	case got := <-done:
		if got != id {
			t.Errorf("removed id = %d, want %d", got, id)
		}
	case <-time.After(time.Second):
		t.Fatal("notification did not expire")
	}
	if len(b.Pending()) != 0 {
		t.Errorf("pending = %d, want 0 after expiry", len(b.Pending()))
	}
}

func TestRemove_StopsExpiryTimer(t *testing.T) {
	b := NewBus()
	removals := 0
	b.Subscribe(Listener{Removed: func(int64) { removals++ }})

	id := b.Show("early", TypeInfo, 20*time.Millisecond)
	b.Remove(id)

	// Give a lingering timer a chance to misfire.
	time.Sleep(50 * time.Millisecond)
	if removals != 1 {
		t.Errorf("removals = %d, want exactly 1: the timer must not fire after an early removal", removals)
	}
}

func TestShow_ZeroDurationPersists(t *testing.T) {
	b := NewBus()
	b.Show("sticky", TypeWarning, 0)
	time.Sleep(30 * time.Millisecond)
	if len(b.Pending()) != 1 {
		t.Errorf("pending = %d, want 1: duration 0 persists until removed", len(b.Pending()))
	}
}

func TestSubscribe_AddedFires(t *testing.T) {
	b := NewBus()
	var got Notification
	b.Subscribe(Listener{Added: func(n Notification) { got = n }})

	b.Error("boom")
	if got.Message != "boom" || got.Type != TypeError {
		t.Errorf("listener saw %+v, want the shown notification", got)
	}
}
