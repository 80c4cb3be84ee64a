package vsocket

import "github.com/sabouaram/vsock/errcode"

// Default buffer bounds, used when a socket is created and never
// reconfigured via setsockopt.
const (
	DefaultMinBufferSize     = 128
	DefaultBufferSize        = 256 * 1024
	DefaultMaxBufferSize     = 256 * 1024 * 1024
)

// SetBufferSize, SetBufferMinSize and SetBufferMaxSize implement the
// BUFFER_SIZE / BUFFER_MIN_SIZE / BUFFER_MAX_SIZE socket options of
// spec.md §6, each preserving invariant 5 (min <= default <= max) or
// failing with EINVAL and leaving the bounds untouched.
func (s *Socket) SetBufferSize(v uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v < s.Min || v > s.Max {
		return errcode.EInval.Unix()
	}
	s.Default = v
	return nil
}

func (s *Socket) SetBufferMinSize(v uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v > s.Default {
		return errcode.EInval.Unix()
	}
	s.Min = v
	return nil
}

func (s *Socket) SetBufferMaxSize(v uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v < s.Default {
		return errcode.EInval.Unix()
	}
	s.Max = v
	return nil
}

func (s *Socket) BufferBounds() (min, def, max uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Min, s.Default, s.Max
}

// InitDefaultBounds seeds the qp_min/default/max triplet at creation time.
func (s *Socket) InitDefaultBounds() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Min, s.Default, s.Max = DefaultMinBufferSize, DefaultBufferSize, DefaultMaxBufferSize
}
