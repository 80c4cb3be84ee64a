// Package vsocket implements the per-connection socket object of spec.md
// §3: addresses, queue-pair handle, subscriptions, shutdown mask, notifier
// hooks, listener back-reference, and the reference-counting discipline
// that keeps it alive across the dispatcher/worker/user-call paths. It
// mirrors the fields of the original spec's "Socket (stream)" model
// one-for-one, renamed to Go idiom, and is grounded on
// original_source/vsock-only/linux/af_vsock.c's struct vsock_sock for
// field semantics where spec.md is silent.
package vsocket

// State is the socket's stream lifecycle state (spec.md §3 "state").
// Iota order follows the original source's VSOCK_SS_* enum for anyone
// cross-referencing it (spec.md §10 supplement).
type State uint8

const (
	StateFree State = iota
	StateUnconnected
	StateListen
	StateConnecting
	StateConnected
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "FREE"
	case StateUnconnected:
		return "UNCONNECTED"
	case StateListen:
		return "LISTEN"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnecting:
		return "DISCONNECTING"
	default:
		return "UNKNOWN"
	}
}

// Type distinguishes the two socket flavors of spec.md §1.
type Type uint8

const (
	TypeStream Type = iota
	TypeDgram
)

func (t Type) String() string {
	if t == TypeDgram {
		return "DGRAM"
	}
	return "STREAM"
}
