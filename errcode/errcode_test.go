package errcode_test

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/sabouaram/vsock/errcode"
)

func TestTranslateProtoBecomesConnReset(t *testing.T) {
	got := errcode.Translate(errcode.EProto)
	if got != errcode.EConnReset {
		t.Errorf("expected EConnReset, got %v", got)
	}
}

func TestTranslateWrappedErrno(t *testing.T) {
	wrapped := errors.Wrap(errcode.EAddrInUse, "bind")
	if got := errcode.Translate(wrapped); got != errcode.EAddrInUse {
		t.Errorf("expected EAddrInUse, got %v", got)
	}
}

func TestTranslateNil(t *testing.T) {
	if got := errcode.Translate(nil); got != 0 {
		t.Errorf("expected zero Errno for nil, got %v", got)
	}
}

func TestTranslateUnknownDefaultsToNoMem(t *testing.T) {
	if got := errcode.Translate(errors.New("boom")); got != errcode.ENoMem {
		t.Errorf("expected ENoMem fallback, got %v", got)
	}
}
