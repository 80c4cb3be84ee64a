package vsocket_test

import (
	"testing"

	"github.com/sabouaram/vsock/vsocket"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		sta vsocket.State
		exp string
	}{
		{vsocket.StateFree, "FREE"},
		{vsocket.StateUnconnected, "UNCONNECTED"},
		{vsocket.StateListen, "LISTEN"},
		{vsocket.StateConnecting, "CONNECTING"},
		{vsocket.StateConnected, "CONNECTED"},
		{vsocket.StateDisconnecting, "DISCONNECTING"},
		{vsocket.State(255), "UNKNOWN"},
	}

	for _, tc := range tests {
		t.Run(tc.exp, func(t *testing.T) {
			if got := tc.sta.String(); got != tc.exp {
				t.Errorf("State(%d).String() = %q, want %q", tc.sta, got, tc.exp)
			}
		})
	}
}

func TestSocketRefcountDestroysOnce(t *testing.T) {
	s := vsocket.New(1, vsocket.TypeStream, nil, false)
	s.InitDefaultBounds()

	s.Ref() // simulate bound-index membership
	s.Ref() // simulate connected-index membership

	if got := s.RefCount(); got != 3 {
		t.Fatalf("expected refcount 3, got %d", got)
	}

	s.Unref()
	s.Unref()
	if got := s.RefCount(); got != 1 {
		t.Fatalf("expected refcount 1, got %d", got)
	}

	s.Unref()
	if got := s.RefCount(); got != 0 {
		t.Fatalf("expected refcount 0, got %d", got)
	}
	if s.State() != vsocket.StateFree {
		t.Fatalf("expected destructor to set StateFree, got %v", s.State())
	}

	// A further Unref below zero must be a no-op, not a second destroy.
	s.Unref()
	if got := s.RefCount(); got != 0 {
		t.Fatalf("expected refcount to stay 0, got %d", got)
	}
}

func TestBufferSizeInvariant(t *testing.T) {
	s := vsocket.New(1, vsocket.TypeStream, nil, false)
	s.InitDefaultBounds()

	if err := s.SetBufferMinSize(10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SetBufferMaxSize(1 << 20); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SetBufferSize(2048); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	min, def, max := s.BufferBounds()
	if !(min <= def && def <= max) {
		t.Fatalf("invariant violated: min=%d default=%d max=%d", min, def, max)
	}

	if err := s.SetBufferMinSize(1 << 21); err == nil {
		t.Fatalf("expected EINVAL raising min above default")
	}
}

func TestOwnedFlagTracksLock(t *testing.T) {
	s := vsocket.New(1, vsocket.TypeStream, nil, false)

	if s.Owned() {
		t.Fatal("expected not owned before Lock")
	}
	s.Lock()
	if !s.Owned() {
		t.Fatal("expected owned after Lock")
	}
	if s.TryLockBH() {
		t.Fatal("TryLockBH should defer while user context owns the socket")
	}
	s.Unlock()
	if s.Owned() {
		t.Fatal("expected not owned after Unlock")
	}
}
