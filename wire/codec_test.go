package wire_test

import (
	"bytes"
	"testing"

	"github.com/sabouaram/vsock/wire"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := wire.Addr{CID: 7, Port: 100}
	dst := wire.Addr{CID: 3, Port: 200}

	tests := []struct {
		nam string
		pkt wire.Packet
	}{
		{"request", wire.Request(src, dst, 65536)},
		{"negotiate", wire.Negotiate(dst, src, 32768)},
		{"offer", wire.Offer(src, dst, wire.Handle{Context: 7, Resource: 42})},
		{"attach", wire.Attach(dst, src, wire.Handle{Context: 7, Resource: 42})},
		{"reset", wire.Reset(src, dst)},
		{"shutdown", wire.Shutdown(src, dst, wire.ShutRD|wire.ShutWR)},
	}

	for _, tc := range tests {
		t.Run(tc.nam, func(t *testing.T) {
			raw := wire.Encode(tc.pkt)
			got, err := wire.Decode(raw)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != tc.pkt {
				t.Errorf("round-trip mismatch: got %+v, want %+v", got, tc.pkt)
			}
		})
	}
}

func TestDecodeUnknownTypeIsInvalid(t *testing.T) {
	raw := wire.Encode(wire.Request(wire.Addr{}, wire.Addr{}, 1))
	// Stomp the type field (bytes 16-17) with a value past typeCount.
	raw[16], raw[17] = 0xFF, 0xFF

	got, err := wire.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != wire.TypeInvalid {
		t.Errorf("expected TypeInvalid, got %v", got.Type)
	}
}

func TestDecodeShortPacket(t *testing.T) {
	if _, err := wire.Decode(bytes.Repeat([]byte{0}, wire.HeaderSize-1)); err != wire.ErrShortPacket {
		t.Errorf("expected ErrShortPacket, got %v", err)
	}
}

func TestIsNotify(t *testing.T) {
	notify := []wire.Packet{
		{Type: wire.TypeWrote},
		{Type: wire.TypeRead},
		{Type: wire.TypeWaitingRead},
		{Type: wire.TypeWaitingWrite},
	}
	for _, p := range notify {
		if !p.IsNotify() {
			t.Errorf("%v should be a notify packet", p.Type)
		}
	}

	nonNotify := []wire.Packet{{Type: wire.TypeRequest}, {Type: wire.TypeReset}}
	for _, p := range nonNotify {
		if p.IsNotify() {
			t.Errorf("%v should not be a notify packet", p.Type)
		}
	}
}
