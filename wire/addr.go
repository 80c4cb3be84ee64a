// Package wire implements the address type and control-packet codec of the
// vsock-style stream/dgram protocol: everything that travels on the wire
// between two endpoints of the shared-memory datagram transport.
package wire

import "fmt"

// Addr identifies an endpoint as a (context-id, port) pair. It is the
// socket's identity once bound; the zero value is not a valid bound
// address, and the socket ops (bind, listen, connect, release) treat a
// Local equal to Addr{} as "not bound yet".
type Addr struct {
	CID  uint32
	Port uint32
}

const (
	// CIDAny is the wildcard context id, used before bind/connect or to mean
	// "the local context" during bind.
	CIDAny uint32 = 0xFFFFFFFF

	// PortAny is the wildcard port, requesting dynamic port assignment.
	PortAny uint32 = 0xFFFFFFFF

	// LastReservedPort is the highest privileged port. Binding to a port
	// <= LastReservedPort requires Socket.Trusted.
	LastReservedPort uint32 = 1023

	// MaxPortRetries bounds the PortAny scan in bind().
	MaxPortRetries = 24

	// ReservedResourceID is the well-known resource id control packets are
	// addressed to on the underlying datagram transport.
	ReservedResourceID uint32 = 1
)

// HypervisorCID and ReservedCID are well-known pseudo-endpoints that may never
// be used as a STREAM peer (spec.md: ENETUNREACH).
const (
	HypervisorCID uint32 = 0
	ReservedCID   uint32 = 1 // "non-socket" well-known cid, also rejected as a STREAM peer
)

func (a Addr) String() string {
	return fmt.Sprintf("%d:%d", a.CID, a.Port)
}

// IsWildcard reports whether either field is a wildcard sentinel.
func (a Addr) IsWildcard() bool {
	return a.CID == CIDAny || a.Port == PortAny
}

// Reserved reports whether Port requires an elevated-privilege bind.
func (a Addr) Reserved() bool {
	return a.Port <= LastReservedPort
}

// WellKnown reports whether CID names the hypervisor or another non-socket
// pseudo-endpoint that must never be accepted as a STREAM peer.
func (a Addr) WellKnown() bool {
	return a.CID == HypervisorCID || a.CID == ReservedCID
}
