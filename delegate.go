package flake

import (
	"encoding/binary"
	"sync"

	ml "github.com/hashicorp/memberlist"
)

const metaLen = 8

// delegate advertises the local node id as member metadata. The guard needs
// no user messages or state exchange.
type delegate struct {
	mu   sync.RWMutex
	meta []byte
}

func newDelegate(nodeID uint64) *delegate {
	return &delegate{meta: encodeMeta(nodeID)}
}

func (d *delegate) NodeMeta(limit int) []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if limit < len(d.meta) {
		return nil
	}
	return d.meta
}

func (d *delegate) setNodeID(nodeID uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.meta = encodeMeta(nodeID)
}

func (d *delegate) NotifyMsg([]byte) {}

func (d *delegate) GetBroadcasts(overhead, limit int) [][]byte {
	return nil
}

func (d *delegate) LocalState(join bool) []byte {
	return nil
}

func (d *delegate) MergeRemoteState(buf []byte, join bool) {}

var _ ml.Delegate = (*delegate)(nil)

// encodeMeta carries only the bits of the node id that reach identifiers.
func encodeMeta(nodeID uint64) []byte {
	b := make([]byte, metaLen)
	binary.BigEndian.PutUint64(b, EmbeddedNodeID(nodeID))
	return b
}

func decodeMeta(meta []byte) (uint64, bool) {
	if len(meta) != metaLen {
		return 0, false
	}
	return EmbeddedNodeID(binary.BigEndian.Uint64(meta)), true
}
