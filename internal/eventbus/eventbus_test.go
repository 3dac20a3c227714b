package eventbus

import (
	"testing"
	"time"
)

func TestPublishFanOut(t *testing.T) {
	b := New()
	defer b.Close()
	a := b.Subscribe()
	c := b.Subscribe()

	b.Publish("hello")
	for _, sub := range []<-chan Event{a, c} {
		select {
		case got := <-sub:
			if got != "hello" {
				t.Fatalf("got %v", got)
			}
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	b := New()
	defer b.Close()
	b.Subscribe() // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultBuffer*2; i++ {
			b.Publish(i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	defer b.Close()
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("channel still open")
	}
	// Publishing after unsubscribe is a no-op for the removed channel.
	b.Publish("x")
}

func TestCloseIsIdempotent(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	b.Close()
	b.Close()
	if _, ok := <-sub; ok {
		t.Fatal("channel still open")
	}
	// Late subscribers get a closed channel.
	late := b.Subscribe()
	if _, ok := <-late; ok {
		t.Fatal("late channel still open")
	}
	b.Publish("dropped")
}

func TestTypedBus(t *testing.T) {
	b := NewTyped[int]()
	defer b.Close()
	sub := b.Subscribe()

	b.Publish(42)
	select {
	case got := <-sub:
		if got != 42 {
			t.Fatalf("got %d", got)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	b.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("channel still open")
	}
}
