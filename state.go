package flake

import (
	"bytes"
	"strconv"

	"github.com/pkg/errors"
)

// State is what the state file persists between calls. LastTimestamp counts
// 100ns ticks since the Unix epoch. NodeID is informational: every load
// re-resolves it.
type State struct {
	LastTimestamp uint64
	Sequence      uint16
	NodeID        uint64
}

// MarshalText encodes the three-line decimal form.
func (s State) MarshalText() ([]byte, error) {
	b := make([]byte, 0, 48)
	b = strconv.AppendUint(b, s.LastTimestamp, 10)
	b = append(b, '\n')
	b = strconv.AppendUint(b, uint64(s.Sequence), 10)
	b = append(b, '\n')
	b = strconv.AppendUint(b, s.NodeID, 10)
	b = append(b, '\n')
	return b, nil
}

// UnmarshalText decodes the three-line decimal form. Lines past the third
// are ignored.
func (s *State) UnmarshalText(text []byte) error {
	lines := bytes.Split(text, []byte{'\n'})
	if len(lines) < 3 {
		return errors.Errorf("expected 3 lines, found %d", len(lines))
	}

	ts, err := parseField(lines[0], "last_timestamp", 64)
	if err != nil {
		return err
	}
	seq, err := parseField(lines[1], "sequence", 16)
	if err != nil {
		return err
	}
	node, err := parseField(lines[2], "node_id", 64)
	if err != nil {
		return err
	}

	*s = State{LastTimestamp: ts, Sequence: uint16(seq), NodeID: node}
	return nil
}

func parseField(line []byte, name string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(string(bytes.TrimSpace(line)), 10, bits)
	if err != nil {
		return 0, errors.Wrapf(err, "field %s", name)
	}
	return v, nil
}
