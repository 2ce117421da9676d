package flake

import (
	"sync"
	"time"

	ml "github.com/hashicorp/memberlist"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pxLi-io/flake/internal/set"
)

// GuardConfig configures the gossip member a Guard runs. Name must be unique
// in the cluster; empty picks hostname-pid-time. BindPort 0 lets the OS choose.
type GuardConfig struct {
	Name     string
	BindAddr string
	BindPort int
	Seeds    []string
}

const updateTimeout = 10 * time.Second

// Guard gossips the local node id and watches for other members that
// advertise the same one. Node ids folded from interface addresses are not
// guaranteed to differ between hosts. Only the bits of a node id that reach
// identifiers are gossiped and compared.
type Guard struct {
	conf   GuardConfig
	logger *zap.SugaredLogger

	mu       sync.Mutex
	nodeID   uint64
	delegate *delegate

	list    *ml.Memberlist
	eventCh chan ml.NodeEvent
	owners  *set.Owners

	closeOnce sync.Once
	close     chan struct{}
}

// NewGuard starts a member advertising nodeID. A Generator holding the guard
// calls Advertise with every freshly resolved id, so the startup value only
// lasts until the first Generate.
func NewGuard(conf GuardConfig, nodeID uint64, logger *zap.SugaredLogger) (*Guard, error) {
	if logger == nil {
		logger = nopSugar()
	}
	if conf.Name == "" {
		conf.Name = memberName()
	}

	mlConf := ml.DefaultLANConfig()
	mlConf.Name = conf.Name
	if conf.BindAddr != "" {
		mlConf.BindAddr = conf.BindAddr
	}
	mlConf.BindPort = conf.BindPort
	mlConf.AdvertisePort = conf.BindPort
	mlConf.Logger = zap.NewStdLog(logger.Desugar().Named("memberlist"))

	g := newGuard(conf, nodeID, logger)
	mlConf.Delegate = g.delegate
	mlConf.Events = &ml.ChannelEventDelegate{Ch: g.eventCh}

	list, err := ml.Create(mlConf)
	if err != nil {
		return nil, errors.Wrap(err, "create memberlist")
	}
	g.list = list
	return g, nil
}

func newGuard(conf GuardConfig, nodeID uint64, logger *zap.SugaredLogger) *Guard {
	id := EmbeddedNodeID(nodeID)
	g := &Guard{
		conf:     conf,
		logger:   logger,
		nodeID:   id,
		delegate: newDelegate(id),
		eventCh:  make(chan ml.NodeEvent, 64),
		owners:   set.New(),
		close:    make(chan struct{}),
	}
	g.owners.Put(conf.Name, id)
	return g
}

// Advertise switches the gossiped node id when the host identity has changed
// since the guard started.
func (g *Guard) Advertise(nodeID uint64) {
	id := EmbeddedNodeID(nodeID)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.nodeID == id {
		return
	}
	g.logger.Infow("advertising new node id", "old_node_id", g.nodeID, "node_id", id)
	g.nodeID = id
	g.delegate.setNodeID(id)
	g.owners.Put(g.conf.Name, id)

	if g.list != nil {
		go func() {
			if err := g.list.UpdateNode(updateTimeout); err != nil {
				g.logger.Warnw("failed to gossip new node id", "node_id", id, "error", err)
			}
		}()
	}
}

// NodeID returns the node id currently advertised.
func (g *Guard) NodeID() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.nodeID
}

// Join contacts the seeds, falling back to the configured ones.
func (g *Guard) Join(seeds ...string) (int, error) {
	if len(seeds) == 0 {
		seeds = g.conf.Seeds
	}
	if len(seeds) == 0 {
		return 0, nil
	}
	g.logger.Infow("joining cluster", "seeds", seeds)
	n, err := g.list.Join(seeds)
	if err != nil {
		g.logger.Errorw("failed to join cluster", "seeds", seeds, "error", err)
		return n, errors.Wrap(err, "join cluster")
	}
	g.logger.Infow("joined cluster", "contacted", n, "members", g.list.NumMembers())
	return n, nil
}

// Serve applies membership events until Shutdown.
func (g *Guard) Serve() {
	for {
		select {
		case <-g.close:
			return
		case e := <-g.eventCh:
			g.handle(e)
		}
	}
}

func (g *Guard) handle(e ml.NodeEvent) {
	if e.Node == nil {
		return
	}
	if e.Event == ml.NodeLeave {
		g.owners.Remove(e.Node.Name)
		g.logger.Infow("member left", "member", e.Node.Name)
		return
	}

	id, ok := decodeMeta(e.Node.Meta)
	if !ok {
		g.logger.Warnw("member advertises no node id", "member", e.Node.Name, "meta_len", len(e.Node.Meta))
		return
	}
	g.owners.Put(e.Node.Name, id)
	if g.owners.Conflicted(id) {
		g.logger.Errorw("node id advertised by several members", "node_id", id, "members", g.owners.Members(id))
	}
}

// Conflicted reports whether nodeID collides with another member's in the
// bits identifiers carry.
func (g *Guard) Conflicted(nodeID uint64) bool {
	return g.owners.Conflicted(EmbeddedNodeID(nodeID))
}

// Conflicts lists node ids advertised by more than one live member.
func (g *Guard) Conflicts() map[uint64][]string {
	return g.owners.Conflicts()
}

func (g *Guard) LocalName() string {
	return g.conf.Name
}

func (g *Guard) Address() string {
	return g.list.LocalNode().Address()
}

func (g *Guard) Leave(timeout time.Duration) error {
	return g.list.Leave(timeout)
}

func (g *Guard) Shutdown() error {
	g.closeOnce.Do(func() { close(g.close) })
	_ = g.logger.Sync()
	return g.list.Shutdown()
}
