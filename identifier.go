package flake

import (
	"encoding/binary"
	"math/big"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

/*
Identifier layout, most significant bit first:

	 0                   1                   2                   3
	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                          time_low                             |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|       time_mid                |  0 1 0 0 |   time_hi         |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|1 0| seq_hi    |  clk_seq_low  |     node << 16 (bits 0-15)    |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|                     node << 16 (bits 16-47)                   |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

The version nibble reads 4 although the layout is time based. Consumers
already key on that value, so it stays.
*/

const (
	versionMarker   uint16 = 0x4000
	variantMarker   uint8  = 0x80
	nodeSegmentBits        = 48
	nodeSegmentMask uint64 = 1<<nodeSegmentBits - 1
)

// Identifier is a 128-bit value stored big-endian.
type Identifier [16]byte

// EmbeddedNodeID returns the part of nodeID that Assemble keeps. Node ids
// that agree here produce the same identifiers.
func EmbeddedNodeID(nodeID uint64) uint64 {
	return nodeID & (nodeSegmentMask >> 16)
}

// Fields are the sub-fields of an Identifier as laid out on the wire. Node is
// the 48-bit node segment, i.e. the node id shifted left by 16.
type Fields struct {
	TimeLow               uint32
	TimeMid               uint16
	TimeHiAndVersion      uint16
	ClockSeqHiAndReserved uint8
	ClockSeqLow           uint8
	Node                  uint64
}

// Assemble packs a tick count, clock sequence and node id. Bits that do not
// fit their field are dropped: timestamp keeps 60 bits, sequence 14 and the
// node id its low 32.
func Assemble(timestamp uint64, sequence uint16, nodeID uint64) Identifier {
	var id Identifier
	binary.BigEndian.PutUint32(id[0:4], uint32(timestamp&0xFFFFFFFF))
	binary.BigEndian.PutUint16(id[4:6], uint16((timestamp>>32)&0xFFFF))
	binary.BigEndian.PutUint16(id[6:8], uint16((timestamp>>48)&0x0FFF)|versionMarker)
	id[8] = uint8((sequence>>8)&0x3F) | variantMarker
	id[9] = uint8(sequence & 0xFF)

	var node [8]byte
	binary.BigEndian.PutUint64(node[:], (nodeID<<16)&nodeSegmentMask)
	copy(id[10:16], node[2:8])
	return id
}

func (id Identifier) Fields() Fields {
	var node [8]byte
	copy(node[2:8], id[10:16])
	return Fields{
		TimeLow:               binary.BigEndian.Uint32(id[0:4]),
		TimeMid:               binary.BigEndian.Uint16(id[4:6]),
		TimeHiAndVersion:      binary.BigEndian.Uint16(id[6:8]),
		ClockSeqHiAndReserved: id[8],
		ClockSeqLow:           id[9],
		Node:                  binary.BigEndian.Uint64(node[:]),
	}
}

// Decode is the inverse of Assemble for values that fit their fields.
func (id Identifier) Decode() (timestamp uint64, sequence uint16, nodeID uint64) {
	f := id.Fields()
	timestamp = uint64(f.TimeLow) |
		uint64(f.TimeMid)<<32 |
		uint64(f.TimeHiAndVersion&0x0FFF)<<48
	sequence = uint16(f.ClockSeqHiAndReserved&0x3F)<<8 | uint16(f.ClockSeqLow)
	nodeID = f.Node >> 16
	return
}

// Version returns the top nibble of time_hi_and_version.
func (id Identifier) Version() uint8 { return id[6] >> 4 }

// Variant returns the top two bits of clock_seq_hi_and_reserved.
func (id Identifier) Variant() uint8 { return id[8] >> 6 }

// Bytes returns the raw 16-byte representation.
func (id Identifier) Bytes() []byte { b := make([]byte, 16); copy(b, id[:]); return b }

// String renders the identifier as a base-10 integer, the form replies carry.
func (id Identifier) String() string {
	return new(big.Int).SetBytes(id[:]).String()
}

// UUID reinterprets the same 128 bits as a canonical UUID.
func (id Identifier) UUID() uuid.UUID { return uuid.UUID(id) }

// ParseIdentifier reads the base-10 form produced by String.
func ParseIdentifier(s string) (Identifier, error) {
	var id Identifier
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return id, errors.Errorf("identifier %q is not a decimal integer", s)
	}
	if n.Sign() < 0 || n.BitLen() > 128 {
		return id, errors.Errorf("identifier %q does not fit in 128 bits", s)
	}
	n.FillBytes(id[:])
	return id, nil
}
