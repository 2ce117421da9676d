// Package flake generates 128-bit identifiers that stay unique across the
// processes of a host without any network round-trip. Each identifier is
// derived from the wall clock, a per-host node id and a clock sequence that
// cooperating processes share through a lock-protected state file.
package flake

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ConflictChecker reports node ids that are not unique in the cluster.
type ConflictChecker interface {
	Conflicted(nodeID uint64) bool
}

// advertiser is implemented by checkers that gossip the local node id; they
// are told the id every load resolved so they never check a stale one.
type advertiser interface {
	Advertise(nodeID uint64)
}

type options struct {
	nodes          NodeSource
	clock          func() time.Time
	seed           func() uint16
	policy         SequencePolicy
	recoverCorrupt bool
	guard          ConflictChecker
	logger         *zap.SugaredLogger
}

// Option configures a Generator or Store.
type Option func(*options)

func newOptions(opts []Option) *options {
	o := &options{
		nodes:  &Resolver{},
		clock:  time.Now,
		seed:   randomSequence,
		policy: AdvanceOnRegressionOnly,
		logger: nopSugar(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func WithNodeSource(src NodeSource) Option {
	return func(o *options) { o.nodes = src }
}

func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithSequenceSeed replaces the random draw used when a state file is first
// initialized.
func WithSequenceSeed(seed func() uint16) Option {
	return func(o *options) { o.seed = seed }
}

func WithSequencePolicy(p SequencePolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithRecoverCorrupt makes a malformed state file start over as if it were
// empty instead of failing with ErrCorruptState.
func WithRecoverCorrupt(enabled bool) Option {
	return func(o *options) { o.recoverCorrupt = enabled }
}

// WithGuard refuses to hand out identifiers while the guard reports the local
// node id as advertised by another member.
func WithGuard(g ConflictChecker) Option {
	return func(o *options) { o.guard = g }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *options) { o.logger = l }
}

// Stats counts Generate outcomes since the Generator was created.
type Stats struct {
	Generated   uint64
	Regressions uint64
	Failures    uint64
}

// Generator ties the state store, clock sequencer and assembler together.
// It is safe for concurrent use; calls serialize on the state file lock.
type Generator struct {
	store  *Store
	guard  ConflictChecker
	logger *zap.SugaredLogger

	generated   *atomic.Uint64
	regressions *atomic.Uint64
	failures    *atomic.Uint64
}

func New(path string, opts ...Option) *Generator {
	o := newOptions(opts)
	return &Generator{
		store:       newStore(path, o),
		guard:       o.guard,
		logger:      o.logger,
		generated:   atomic.NewUint64(0),
		regressions: atomic.NewUint64(0),
		failures:    atomic.NewUint64(0),
	}
}

// Generate produces one identifier. Every successful call rewrites the state
// file; no identifier leaves without its state committed.
func (g *Generator) Generate() (Identifier, error) {
	id, err := g.generate()
	if err != nil {
		g.failures.Inc()
		return Identifier{}, err
	}
	g.generated.Inc()
	return id, nil
}

func (g *Generator) generate() (Identifier, error) {
	state, lease, err := g.store.Load()
	if err != nil {
		return Identifier{}, err
	}
	if lease.Regressed() {
		g.regressions.Inc()
	}

	if adv, ok := g.guard.(advertiser); ok {
		adv.Advertise(state.NodeID)
	}
	if g.guard != nil && g.guard.Conflicted(state.NodeID) {
		g.logger.Errorw("refusing to generate with a conflicting node id", "node_id", state.NodeID)
		cerr := newError(ErrNodeConflict, "generate", g.store.path, errors.Errorf("node id %d", state.NodeID))
		return Identifier{}, multierr.Append(cerr, lease.Release())
	}

	id := Assemble(state.LastTimestamp, state.Sequence, state.NodeID)
	if err := g.store.Commit(state, lease); err != nil {
		return Identifier{}, err
	}
	return id, nil
}

func (g *Generator) Stats() Stats {
	return Stats{
		Generated:   g.generated.Load(),
		Regressions: g.regressions.Load(),
		Failures:    g.failures.Load(),
	}
}

// Generate is a one-shot New(path, opts...).Generate().
func Generate(path string, opts ...Option) (Identifier, error) {
	return New(path, opts...).Generate()
}
