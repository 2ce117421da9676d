package flake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile(t *testing.T) {
	stored := State{LastTimestamp: 1000, Sequence: 5, NodeID: 9}

	tests := []struct {
		name          string
		now           uint64
		policy        SequencePolicy
		wantSeq       uint16
		wantRegressed bool
	}{
		{"clock advanced", 2000, AdvanceOnRegressionOnly, 5, false},
		{"same tick", 1000, AdvanceOnRegressionOnly, 5, false},
		{"clock regressed", 999, AdvanceOnRegressionOnly, 6, true},
		{"every call advanced", 2000, AdvanceEveryCall, 6, false},
		{"every call same tick", 1000, AdvanceEveryCall, 6, false},
		{"every call regressed", 10, AdvanceEveryCall, 6, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, regressed := Reconcile(stored, tt.now, tt.policy)
			assert.Equal(t, tt.wantSeq, next.Sequence)
			assert.Equal(t, tt.wantRegressed, regressed)
			assert.Equal(t, tt.now, next.LastTimestamp, "timestamp is always the observed tick")
			assert.Equal(t, stored.NodeID, next.NodeID)
		})
	}
}

func TestReconcileSequenceWraps(t *testing.T) {
	next, regressed := Reconcile(State{LastTimestamp: 10, Sequence: 0xFFFF}, 1, AdvanceOnRegressionOnly)
	assert.True(t, regressed)
	assert.Equal(t, uint16(0), next.Sequence)
}

func TestParseSequencePolicy(t *testing.T) {
	for _, p := range []SequencePolicy{AdvanceOnRegressionOnly, AdvanceEveryCall} {
		got, err := ParseSequencePolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParseSequencePolicy("sometimes")
	assert.Error(t, err)
}
