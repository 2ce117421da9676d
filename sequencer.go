package flake

import "github.com/pkg/errors"

// SequencePolicy decides when the clock sequence moves.
type SequencePolicy int

const (
	// AdvanceOnRegressionOnly bumps the sequence only when the stored tick is
	// ahead of the clock. Two calls inside one tick return the same identifier.
	AdvanceOnRegressionOnly SequencePolicy = iota
	// AdvanceEveryCall bumps the sequence on every load, regression or not.
	AdvanceEveryCall
)

func (p SequencePolicy) String() string {
	switch p {
	case AdvanceOnRegressionOnly:
		return "regression-only"
	case AdvanceEveryCall:
		return "every-call"
	default:
		return "unknown"
	}
}

func ParseSequencePolicy(s string) (SequencePolicy, error) {
	switch s {
	case "", "regression-only":
		return AdvanceOnRegressionOnly, nil
	case "every-call":
		return AdvanceEveryCall, nil
	}
	return 0, errors.Errorf("unknown sequence policy %q", s)
}

// Reconcile moves stored state to the observed tick now. The returned state
// always carries now as its timestamp; regressed reports whether the stored
// tick was ahead of now. The sequence wraps at 2^16.
func Reconcile(stored State, now uint64, policy SequencePolicy) (next State, regressed bool) {
	next = stored
	regressed = stored.LastTimestamp > now
	if regressed || policy == AdvanceEveryCall {
		next.Sequence++
	}
	next.LastTimestamp = now
	return next, regressed
}
