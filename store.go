package flake

import (
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Store is the lock-protected state file shared by every process that
// generates identifiers from the same path.
//
// There is no lease expiry: a holder that stalls without exiting blocks every
// other caller, and a crash mid-write can leave the file torn.
type Store struct {
	path           string
	nodes          NodeSource
	clock          func() time.Time
	seed           func() uint16
	policy         SequencePolicy
	recoverCorrupt bool
	logger         *zap.SugaredLogger
}

// Lease is proof of holding the exclusive lock. It is consumed by Commit or
// Release, whichever comes first.
type Lease struct {
	f         *os.File
	path      string
	regressed bool
	done      bool
}

// Regressed reports whether the load behind this lease saw the clock behind
// the stored timestamp.
func (l *Lease) Regressed() bool { return l.regressed }

// NewStore returns a store for path. Only the options that concern state
// handling take effect.
func NewStore(path string, opts ...Option) *Store {
	return newStore(path, newOptions(opts))
}

func newStore(path string, o *options) *Store {
	return &Store{
		path:           path,
		nodes:          o.nodes,
		clock:          o.clock,
		seed:           o.seed,
		policy:         o.policy,
		recoverCorrupt: o.recoverCorrupt,
		logger:         o.logger,
	}
}

func (s *Store) Path() string { return s.path }

// Load opens or creates the state file, blocks until it holds the exclusive
// lock, and returns the reconciled state. On error the lock is already
// released.
func (s *Store) Load() (*State, *Lease, error) {
	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, nil, newError(ErrIO, "open", s.path, errors.WithStack(err))
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, nil, newError(ErrLock, "lock", s.path, err)
	}

	lease := &Lease{f: f, path: s.path}
	state, err := s.load(lease)
	if err != nil {
		return nil, nil, multierr.Append(err, lease.Release())
	}
	return state, lease, nil
}

func (s *Store) load(l *Lease) (*State, error) {
	text, err := io.ReadAll(l.f)
	if err != nil {
		return nil, newError(ErrIO, "read", s.path, errors.WithStack(err))
	}
	now := ticks(s.clock())

	if len(text) == 0 {
		return s.initialize(l, now)
	}

	var stored State
	if err := stored.UnmarshalText(text); err != nil {
		if !s.recoverCorrupt {
			return nil, newError(ErrCorruptState, "decode", s.path, err)
		}
		s.logger.Warnw("reinitializing corrupt generator state", "path", s.path, "error", err)
		return s.initialize(l, now)
	}

	nodeID, err := s.nodes.Resolve()
	if err != nil {
		return nil, err
	}

	state, regressed := Reconcile(stored, now, s.policy)
	state.NodeID = nodeID
	if regressed {
		l.regressed = true
		s.logger.Warnw("clock moved backwards",
			"path", s.path,
			"stored_tick", stored.LastTimestamp,
			"observed_tick", now,
			"sequence", state.Sequence,
		)
	}
	return &state, nil
}

func (s *Store) initialize(l *Lease, now uint64) (*State, error) {
	nodeID, err := s.nodes.Resolve()
	if err != nil {
		return nil, err
	}
	state := &State{LastTimestamp: now, Sequence: s.seed(), NodeID: nodeID}
	if err := l.write(state); err != nil {
		return nil, err
	}
	s.logger.Infow("initialized generator state",
		"path", s.path,
		"sequence", state.Sequence,
		"node_id", state.NodeID,
	)
	return state, nil
}

// Commit writes state, flushes it to disk and releases the lock. The lock is
// released even when the write fails.
func (s *Store) Commit(state *State, l *Lease) error {
	if l == nil || l.done {
		return newError(ErrLock, "commit", s.path, errors.New("lease already released"))
	}
	return multierr.Append(l.write(state), l.Release())
}

func (l *Lease) write(state *State) error {
	text, err := state.MarshalText()
	if err != nil {
		return newError(ErrIO, "encode", l.path, err)
	}
	if _, err := l.f.WriteAt(text, 0); err != nil {
		return newError(ErrIO, "write", l.path, errors.WithStack(err))
	}
	// a shorter encoding must not leave the tail of the previous one behind
	if err := l.f.Truncate(int64(len(text))); err != nil {
		return newError(ErrIO, "truncate", l.path, errors.WithStack(err))
	}
	if err := l.f.Sync(); err != nil {
		return newError(ErrIO, "sync", l.path, errors.WithStack(err))
	}
	return nil
}

// Release unlocks and closes the file without writing. Calling it on a
// consumed lease is a no-op.
func (l *Lease) Release() error {
	if l.done {
		return nil
	}
	l.done = true

	var err error
	if uerr := unlockFile(l.f); uerr != nil {
		err = newError(ErrLock, "unlock", l.path, uerr)
	}
	if cerr := l.f.Close(); cerr != nil {
		err = multierr.Append(err, newError(ErrIO, "close", l.path, errors.WithStack(cerr)))
	}
	return err
}

func ticks(t time.Time) uint64 {
	return uint64(t.UnixNano()) / 100
}

func randomSequence() uint16 {
	return uint16(rand.Uint32())
}
