package eventbus

import "testing"

func TestPublishSubscribe(t *testing.T) {
	b := New[int]()
	sub := b.Subscribe()
	if b.Len() != 1 {
		t.Fatalf("len = %d, want 1", b.Len())
	}

	b.Publish(42)
	if got := <-sub; got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	b := New[int]()
	sub := b.Subscribe()
	for i := 0; i < 20; i++ {
		b.Publish(i)
	}
	// Buffer is 16; the rest are dropped, never blocked on.
	count := 0
	for {
		select {
		case <-sub:
			count++
			continue
		default:
		}
		break
	}
	if count != 16 {
		t.Fatalf("buffered %d events, want 16", count)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New[string]()
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	if b.Len() != 0 {
		t.Fatalf("len = %d after unsubscribe", b.Len())
	}
	if _, open := <-sub; open {
		t.Fatalf("channel still open after unsubscribe")
	}
	// Publishing to a bus with no subscribers is a no-op.
	b.Publish("dropped")
}

func TestCloseClosesAllSubscribers(t *testing.T) {
	b := New[int]()
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	b.Close()
	if _, open := <-s1; open {
		t.Fatalf("s1 open after close")
	}
	if _, open := <-s2; open {
		t.Fatalf("s2 open after close")
	}
	// Subscribing after close yields a closed channel.
	s3 := b.Subscribe()
	if _, open := <-s3; open {
		t.Fatalf("s3 open after close")
	}
	b.Publish(1)
	b.Close()
}
