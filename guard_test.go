package flake

import (
	"testing"

	ml "github.com/hashicorp/memberlist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memberEvent(kind ml.NodeEventType, name string, nodeID uint64) ml.NodeEvent {
	return ml.NodeEvent{Event: kind, Node: &ml.Node{Name: name, Meta: encodeMeta(nodeID)}}
}

func TestGuardDetectsConflicts(t *testing.T) {
	g := newGuard(GuardConfig{Name: "a"}, 10, nopSugar())

	g.handle(memberEvent(ml.NodeJoin, "a", 10))
	g.handle(memberEvent(ml.NodeJoin, "b", 20))
	assert.False(t, g.Conflicted(10))
	assert.Empty(t, g.Conflicts())

	g.handle(memberEvent(ml.NodeJoin, "c", 10))
	assert.True(t, g.Conflicted(10))
	assert.Equal(t, map[uint64][]string{10: {"a", "c"}}, g.Conflicts())

	// c changes its id, conflict clears
	g.handle(memberEvent(ml.NodeUpdate, "c", 30))
	assert.False(t, g.Conflicted(10))

	g.handle(memberEvent(ml.NodeJoin, "d", 20))
	assert.True(t, g.Conflicted(20))
	g.handle(ml.NodeEvent{Event: ml.NodeLeave, Node: &ml.Node{Name: "d"}})
	assert.False(t, g.Conflicted(20))
}

func TestGuardIgnoresMembersWithoutNodeID(t *testing.T) {
	g := newGuard(GuardConfig{Name: "a"}, 10, nopSugar())
	g.handle(ml.NodeEvent{Event: ml.NodeJoin, Node: &ml.Node{Name: "x", Meta: []byte{1, 2}}})
	g.handle(ml.NodeEvent{Event: ml.NodeJoin})
	assert.Equal(t, 1, g.owners.Len(), "only the local member")
}

func TestGuardComparesEmbeddedBits(t *testing.T) {
	// raw folds of two addresses that differ only above bit 31
	a, b := uint64(0x643a65653a66660a), uint64(0x643a64643a66660a)
	require.Equal(t, Assemble(1000, 3, a), Assemble(1000, 3, b))

	g := newGuard(GuardConfig{Name: "a"}, a, nopSugar())
	g.handle(memberEvent(ml.NodeJoin, "a", a))
	assert.False(t, g.Conflicted(a))

	g.handle(memberEvent(ml.NodeJoin, "b", b))
	assert.True(t, g.Conflicted(a))
	assert.True(t, g.Conflicted(b))
	assert.Equal(t, map[uint64][]string{EmbeddedNodeID(a): {"a", "b"}}, g.Conflicts())
}

func TestGuardAdvertise(t *testing.T) {
	g := newGuard(GuardConfig{Name: "a"}, 10, nopSugar())
	g.handle(memberEvent(ml.NodeJoin, "b", 20))
	assert.False(t, g.Conflicted(20))

	g.Advertise(20)
	assert.Equal(t, uint64(20), g.NodeID())
	assert.Equal(t, encodeMeta(20), g.delegate.NodeMeta(512))
	assert.True(t, g.Conflicted(20))
	assert.False(t, g.Conflicted(10))

	// bits above 31 never reach identifiers, so this is the same id
	g.Advertise(1<<40 | 20)
	assert.Equal(t, uint64(20), g.NodeID())
}

func TestMeta(t *testing.T) {
	id, ok := decodeMeta(encodeMeta(0xbeefcafe))
	require.True(t, ok)
	assert.Equal(t, uint64(0xbeefcafe), id)

	id, ok = decodeMeta(encodeMeta(0xdeadbeefcafe))
	require.True(t, ok)
	assert.Equal(t, uint64(0xbeefcafe), id)

	_, ok = decodeMeta(nil)
	assert.False(t, ok)

	d := newDelegate(7)
	assert.Equal(t, encodeMeta(7), d.NodeMeta(512))
	assert.Nil(t, d.NodeMeta(4))
}

func TestNewGuardOnLoopback(t *testing.T) {
	g, err := NewGuard(GuardConfig{Name: "local", BindAddr: "127.0.0.1"}, 99, nil)
	require.NoError(t, err)
	defer func() { _ = g.Shutdown() }()
	go g.Serve()

	assert.Equal(t, "local", g.LocalName())
	assert.NotEmpty(t, g.Address())
	assert.False(t, g.Conflicted(99))

	n, err := g.Join()
	require.NoError(t, err)
	assert.Zero(t, n)
}
