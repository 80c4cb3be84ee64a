package wire

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// HeaderSize is the minimum number of bytes a control datagram must carry
// before Decode will parse it (spec.md §4.2
// validation: "packet must be at least the control-header size").
const HeaderSize = 4*4 + 2 + 2 // src{cid,port} + dst{cid,port} + type + pad

// ErrShortPacket is returned by Decode when the payload is smaller than
// HeaderSize.
var ErrShortPacket = errors.New("wire: payload shorter than control header")

// Encode serializes a Packet to its wire form. Every body-carrying variant
// writes an 8-byte body, the size of the largest union member (size:u64),
// matching the C union in spec.md §6; narrower values are widened to u64.
// RST and INVALID carry no body and encode as the bare header.
func Encode(p Packet) []byte {
	buf := &bytes.Buffer{}
	buf.Grow(HeaderSize + 8)

	_ = binary.Write(buf, binary.BigEndian, p.Src.CID)
	_ = binary.Write(buf, binary.BigEndian, p.Src.Port)
	_ = binary.Write(buf, binary.BigEndian, p.Dst.CID)
	_ = binary.Write(buf, binary.BigEndian, p.Dst.Port)
	_ = binary.Write(buf, binary.BigEndian, uint16(p.Type))
	_ = binary.Write(buf, binary.BigEndian, uint16(0)) // pad

	switch p.Type {
	case TypeRequest, TypeNegotiate:
		_ = binary.Write(buf, binary.BigEndian, p.Size)
	case TypeOffer, TypeAttach:
		_ = binary.Write(buf, binary.BigEndian, p.Handle.Context)
		_ = binary.Write(buf, binary.BigEndian, p.Handle.Resource)
	case TypeShutdown:
		_ = binary.Write(buf, binary.BigEndian, uint64(p.Mask))
	case TypeWrote:
		_ = binary.Write(buf, binary.BigEndian, uint64(p.Written))
	case TypeRead:
		_ = binary.Write(buf, binary.BigEndian, uint64(p.Consumed))
	case TypeWaitingRead, TypeWaitingWrite:
		_ = binary.Write(buf, binary.BigEndian, uint64(p.Wait))
	}

	return buf.Bytes()
}

// Decode parses a wire payload into a Packet. A type value past the last
// recognized variant decodes successfully with Type set to TypeInvalid,
// per spec.md §3 ("Unknown types past the last recognized value cause an
// INVALID reply") — it is the caller's job to reply, Decode just classifies.
func Decode(raw []byte) (Packet, error) {
	if len(raw) < HeaderSize {
		return Packet{}, ErrShortPacket
	}

	r := bytes.NewReader(raw)
	var p Packet
	var typ, pad uint16

	_ = binary.Read(r, binary.BigEndian, &p.Src.CID)
	_ = binary.Read(r, binary.BigEndian, &p.Src.Port)
	_ = binary.Read(r, binary.BigEndian, &p.Dst.CID)
	_ = binary.Read(r, binary.BigEndian, &p.Dst.Port)
	_ = binary.Read(r, binary.BigEndian, &typ)
	_ = binary.Read(r, binary.BigEndian, &pad)

	if typ >= uint16(typeCount) {
		p.Type = TypeInvalid
		return p, nil
	}
	p.Type = PacketType(typ)

	switch p.Type {
	case TypeRequest, TypeNegotiate:
		if err := binary.Read(r, binary.BigEndian, &p.Size); err != nil && err != io.EOF {
			return Packet{}, errors.Wrap(err, "wire: decode size body")
		}
	case TypeOffer, TypeAttach:
		_ = binary.Read(r, binary.BigEndian, &p.Handle.Context)
		_ = binary.Read(r, binary.BigEndian, &p.Handle.Resource)
	case TypeShutdown:
		var m uint64
		_ = binary.Read(r, binary.BigEndian, &m)
		p.Mask = ShutMask(m)
	case TypeWrote:
		var v uint64
		_ = binary.Read(r, binary.BigEndian, &v)
		p.Written = uint32(v)
	case TypeRead:
		var v uint64
		_ = binary.Read(r, binary.BigEndian, &v)
		p.Consumed = uint32(v)
	case TypeWaitingRead, TypeWaitingWrite:
		var v uint64
		_ = binary.Read(r, binary.BigEndian, &v)
		p.Wait = WaitMode(v)
	}

	return p, nil
}
