// Package errcode maps the internal failure modes of the vsock core onto
// POSIX errno values, the way spec.md §7 requires: "Transport-level error
// codes are translated through a single mapping function to POSIX codes
// before surfacing." It is grounded on the code-registry pattern of the
// teacher's errors/code.go (a CodeError keyed message registry), simplified
// because the errno space here is the fixed, small set of spec.md §7
// rather than an open-ended per-package registry.
package errcode

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Errno wraps a POSIX errno constant from golang.org/x/sys/unix so it can
// travel as a plain Go error while still being comparable with ==.
type Errno unix.Errno

func (e Errno) Error() string { return unix.Errno(e).Error() }

// Unix returns the underlying unix.Errno, for callers that need to hand a
// real syscall.Errno to something outside this module.
func (e Errno) Unix() unix.Errno { return unix.Errno(e) }

// The errno surface named in spec.md §7, grouped by category.
var (
	// Addressing
	EAddrNotAvail = Errno(unix.EADDRNOTAVAIL)
	EAddrInUse    = Errno(unix.EADDRINUSE)
	EAccess       = Errno(unix.EACCES)
	EInval        = Errno(unix.EINVAL)
	EAFNoSupport  = Errno(unix.EAFNOSUPPORT)

	// State
	ENotConn     = Errno(unix.ENOTCONN)
	EIsConn      = Errno(unix.EISCONN)
	EAlready     = Errno(unix.EALREADY)
	EInProgress  = Errno(unix.EINPROGRESS)
	EDestAddrReq = Errno(unix.EDESTADDRREQ)
	EPipe        = Errno(unix.EPIPE)
	ENetUnreach  = Errno(unix.ENETUNREACH)
	EConnRefused = Errno(unix.ECONNREFUSED)
	EConnReset   = Errno(unix.ECONNRESET)

	// Resources
	ENoMem   = Errno(unix.ENOMEM)
	EMsgSize = Errno(unix.EMSGSIZE)

	// Blocking
	EAgain     = Errno(unix.EAGAIN)
	ETimedOut  = Errno(unix.ETIMEDOUT)
	EIntr      = Errno(unix.EINTR)

	// Protocol (internal only: never surfaced directly, see Translate)
	EProto = Errno(unix.EPROTO)

	// Unsupported
	EOpNotSupp  = Errno(unix.EOPNOTSUPP)
	ENoProtoOpt = Errno(unix.ENOPROTOOPT)
)

// Wrap attaches a stack trace to err for log-time diagnosis, mirroring the
// teacher's reliance on github.com/pkg/errors for traceable error chains.
// It returns nil if err is nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

// Translate is the single mapping function spec.md §7 requires: it takes
// whatever error a transport.Datagram/QueuePairProvider call returned and
// reduces it to the Errno the socket should record or return. Internal
// EProto is translated to ECONNRESET, per spec.md §7 ("internal EPROTO for
// unexpected packet in a state ... surface as ECONNRESET to user").
func Translate(err error) Errno {
	if err == nil {
		return 0
	}

	var e Errno
	if errors.As(err, &e) {
		if e == EProto {
			return EConnReset
		}
		return e
	}

	var u unix.Errno
	if errors.As(err, &u) {
		return Errno(u)
	}

	return ENoMem
}

// IfError returns Translate(err).Error() wrapped as an error, or nil if err
// is nil — convenience for sockops return statements that need a plain
// `error` rather than an Errno.
func IfError(err error) error {
	if err == nil {
		return nil
	}
	t := Translate(err)
	return errors.Wrap(t, err.Error())
}
