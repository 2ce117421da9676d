package flake

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleDecodeRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 10000; i++ {
		ts := r.Uint64() & (1<<60 - 1)
		seq := uint16(r.Intn(1 << 14))
		node := uint64(r.Uint32())

		gotTs, gotSeq, gotNode := Assemble(ts, seq, node).Decode()
		require.Equal(t, ts, gotTs)
		require.Equal(t, seq, gotSeq)
		require.Equal(t, node, gotNode)
	}
}

func TestAssembleKnownValue(t *testing.T) {
	id := Assemble(0x0123456789abcdef, 0x1234, 0xdeadbeef)

	f := id.Fields()
	assert.Equal(t, uint32(0x89abcdef), f.TimeLow)
	assert.Equal(t, uint16(0x4567), f.TimeMid)
	assert.Equal(t, uint16(0x4123), f.TimeHiAndVersion)
	assert.Equal(t, uint8(0x92), f.ClockSeqHiAndReserved)
	assert.Equal(t, uint8(0x34), f.ClockSeqLow)
	assert.Equal(t, uint64(0xdeadbeef0000), f.Node)

	assert.Equal(t, "182996295036321812260999712094139908096", id.String())
}

func TestMarkerBitsAreConstant(t *testing.T) {
	cases := []struct {
		ts   uint64
		seq  uint16
		node uint64
	}{
		{0, 0, 0},
		{math.MaxUint64, math.MaxUint16, math.MaxUint64},
		{0xF000000000000000, 0xC000, 0xFFFFFFFF00000000},
		{0x643a65653a66660a, 0xFFFF, 0x643a65653a66660a},
	}
	for _, c := range cases {
		id := Assemble(c.ts, c.seq, c.node)
		assert.Equal(t, uint8(0x4), id.Version(), "version nibble for %+v", c)
		assert.Equal(t, uint8(0x2), id.Variant(), "variant bits for %+v", c)
	}

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 10000; i++ {
		id := Assemble(r.Uint64(), uint16(r.Uint32()), r.Uint64())
		require.Equal(t, uint8(0x4), id.Version())
		require.Equal(t, uint8(0x2), id.Variant())
	}
}

func TestAssembleDropsBitsOutsideFields(t *testing.T) {
	id := Assemble(math.MaxUint64, math.MaxUint16, math.MaxUint64)
	ts, seq, node := id.Decode()
	assert.Equal(t, uint64(1<<60-1), ts)
	assert.Equal(t, uint16(1<<14-1), seq)
	assert.Equal(t, uint64(math.MaxUint32), node)
	assert.Equal(t, uint64(0xFFFFFFFF0000), id.Fields().Node)
}

func TestParseIdentifier(t *testing.T) {
	id := Assemble(16_000_000_000_000_000, 513, 0xcafe)

	parsed, err := ParseIdentifier(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	for _, bad := range []string{"", "abc", "-1", "340282366920938463463374607431768211456"} {
		_, err := ParseIdentifier(bad)
		assert.Error(t, err, bad)
	}

	top, err := ParseIdentifier("340282366920938463463374607431768211455")
	require.NoError(t, err)
	assert.Equal(t, Identifier{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, top)
}

func TestIdentifierUUID(t *testing.T) {
	id := Assemble(0x0123456789abcdef, 0x1234, 0xdeadbeef)
	u := id.UUID()
	assert.Equal(t, uuid.Version(4), u.Version())
	assert.Equal(t, uuid.RFC4122, u.Variant())
	assert.Equal(t, "89abcdef-4567-4123-9234-deadbeef0000", u.String())
	assert.Equal(t, id.Bytes(), u[:])
}
