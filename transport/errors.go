package transport

import "errors"

// ErrNoRoute is returned by Datagram.Send when the destination context id
// is not reachable on this transport.
var ErrNoRoute = errors.New("transport: no route to destination context")

// ErrHandleUnknown is returned by QueuePairProvider.Attach when the offered
// handle was never allocated on this transport.
var ErrHandleUnknown = errors.New("transport: unknown queue pair handle")
