package sockops

import (
	"github.com/sabouaram/vsock/errcode"
	"github.com/sabouaram/vsock/vsocket"
)

// Opt names the setsockopt/getsockopt options of spec.md §6.
type Opt int

const (
	OptBufferSize Opt = iota
	OptBufferMinSize
	OptBufferMaxSize
)

// SetOpt implements setsockopt for the buffer-size family; each setter
// preserves invariant 5 (min <= default <= max) itself.
func (o *Ops) SetOpt(sock *vsocket.Socket, opt Opt, v uint64) error {
	switch opt {
	case OptBufferSize:
		return sock.SetBufferSize(v)
	case OptBufferMinSize:
		return sock.SetBufferMinSize(v)
	case OptBufferMaxSize:
		return sock.SetBufferMaxSize(v)
	default:
		return errcode.ENoProtoOpt.Unix()
	}
}

// GetOpt implements getsockopt for the buffer-size family.
func (o *Ops) GetOpt(sock *vsocket.Socket, opt Opt) (uint64, error) {
	min, def, max := sock.BufferBounds()
	switch opt {
	case OptBufferSize:
		return def, nil
	case OptBufferMinSize:
		return min, nil
	case OptBufferMaxSize:
		return max, nil
	default:
		return 0, errcode.ENoProtoOpt.Unix()
	}
}
