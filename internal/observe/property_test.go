package observe

import "testing"

func TestProperty_EqualityGuard(t *testing.T) {
	p := NewProperty(1, func(a, b int) bool { return a == b })
	calls := 0
	p.Subscribe(func(int) { calls++ })

	p.Set(1) // same value, no fire
	if calls != 0 {
		t.Fatalf("expected 0 calls, got %d", calls)
	}
	p.Set(2)
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if p.Get() != 2 {
		t.Fatalf("expected Get() == 2, got %d", p.Get())
	}
}

func TestProperty_SubscriptionDetaches(t *testing.T) {
	p := NewProperty(0, func(a, b int) bool { return a == b })
	calls := 0
	sub := p.Subscribe(func(int) { calls++ })
	p.Set(1)
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	sub.Close()
	p.Set(2)
	if calls != 1 {
		t.Fatalf("expected no call after Close, got %d", calls)
	}
	// Closing twice must not panic.
	sub.Close()
}

func TestSignal_MulticastAndDetach(t *testing.T) {
	s := NewSignal[string]()
	var a, b int
	s1 := s.Subscribe(func(string) { a++ })
	s2 := s.Subscribe(func(string) { b++ })

	s.Emit("x")
	if a != 1 || b != 1 {
		t.Fatalf("expected both subscribers fired once, got a=%d b=%d", a, b)
	}
	s1.Close()
	s.Emit("y")
	if a != 1 || b != 2 {
		t.Fatalf("expected only b to fire after detach, got a=%d b=%d", a, b)
	}
	s2.Close()
	if s.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", s.SubscriberCount())
	}
}
