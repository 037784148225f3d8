package bus

import (
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := New()
	ch1, cancel1 := b.Subscribe(4)
	defer cancel1()
	ch2, cancel2 := b.Subscribe(4)
	defer cancel2()

	b.Publish(TaskCreated{TaskID: "t1", ParentWorkspaceID: "p"})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Kind() != "task-created" {
				t.Errorf("subscriber %d got kind %q", i, ev.Kind())
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d got nothing", i)
		}
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe(1)
	cancel()
	cancel() // second cancel is safe

	if _, open := <-ch; open {
		t.Fatal("channel still open after cancel")
	}
	if n := b.SubscriberCount(); n != 0 {
		t.Fatalf("SubscriberCount = %d, want 0", n)
	}
	b.Publish(StreamEnd{WorkspaceID: "ws"})
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	b := New()
	_, cancel := b.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		// Buffer is 1; the second publish must drop, not block.
		b.Publish(StreamEnd{WorkspaceID: "a"})
		b.Publish(StreamEnd{WorkspaceID: "b"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}
