package wire

import "testing"

func TestUserDataStreamStateLifetimeNeverDecrements(t *testing.T) {
	s := NewUserDataStreamState()
	if !s.Add(1) {
		t.Fatal("expected Add to succeed")
	}
	if !s.Add(2) {
		t.Fatal("expected Add to succeed")
	}
	s.Remove(1)
	if got := len(s.Active()); got != 1 {
		t.Fatalf("active count = %d, want 1", got)
	}
	if s.LifetimeCount() != 2 {
		t.Fatalf("lifetime count = %d, want 2 (must not decrement on remove)", s.LifetimeCount())
	}
}

func TestUserDataStreamStateCanCreateRespectsConcurrencyCeiling(t *testing.T) {
	s := NewUserDataStreamState()
	s.maxConcurrent = 1
	if !s.Add(1) {
		t.Fatal("expected first Add to succeed")
	}
	if s.Add(2) {
		t.Fatal("expected second Add to fail: at concurrency ceiling")
	}
	if s.CanCreate() {
		t.Fatal("CanCreate should be false at ceiling")
	}
}

func TestUserDataStreamStateCanCreateRespectsLifetimeCeiling(t *testing.T) {
	s := NewUserDataStreamState()
	s.maxLifetime = 1
	if !s.Add(1) {
		t.Fatal("expected first Add to succeed")
	}
	s.Remove(1)
	if s.Add(2) {
		t.Fatal("expected Add to fail: lifetime ceiling reached even though active is empty")
	}
}

func TestUserDataStreamStateClearAllKeepsLifetimeCount(t *testing.T) {
	s := NewUserDataStreamState()
	s.Add(1)
	s.Add(2)
	s.ClearAll()
	if len(s.Active()) != 0 {
		t.Fatal("expected active to be empty after ClearAll")
	}
	if s.LifetimeCount() != 2 {
		t.Fatalf("lifetime count = %d, want 2", s.LifetimeCount())
	}
}
