package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	maelstrom "github.com/jepsen-io/maelstrom/demo/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pxLi-io/flake"
)

type fakeGen struct {
	id  flake.Identifier
	err error
}

func (g fakeGen) Generate() (flake.Identifier, error) { return g.id, g.err }

type captureReplier struct {
	body any
}

func (r *captureReplier) Reply(req maelstrom.Message, body any) error {
	r.body = body
	return nil
}

func TestGenerateHandlerReplies(t *testing.T) {
	id := flake.Assemble(1000, 3, 7)
	r := &captureReplier{}
	h := generateHandler(r, fakeGen{id: id})

	require.NoError(t, h(maelstrom.Message{}))
	assert.Equal(t, map[string]any{"type": "generate_ok", "id": id.String()}, r.body)
}

func TestGenerateHandlerErrors(t *testing.T) {
	tests := []struct {
		kind error
		code int
	}{
		{flake.ErrLock, maelstrom.TemporarilyUnavailable},
		{flake.ErrIO, maelstrom.TemporarilyUnavailable},
		{flake.ErrCorruptState, maelstrom.Crash},
		{flake.ErrNoNetworkInterface, maelstrom.Crash},
		{flake.ErrNodeConflict, maelstrom.Crash},
	}
	for _, tt := range tests {
		r := &captureReplier{}
		err := generateHandler(r, fakeGen{err: &flake.Error{Kind: tt.kind, Op: "test"}})(maelstrom.Message{})

		var rpcErr *maelstrom.RPCError
		require.True(t, errors.As(err, &rpcErr), "%v", tt.kind)
		assert.Equal(t, tt.code, rpcErr.Code, "%v", tt.kind)
		assert.Nil(t, r.body)
	}
}

func TestLoadConfigKeepsExplicitFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flake.yaml")
	require.NoError(t, os.WriteFile(path, []byte("state_path: /from/file.db\nsequence_policy: every-call\n"), 0o644))

	cmd := newRootCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--state", "/from/flag.db", "--cluster-seeds", "a:1,b:2"}))

	conf, err := loadConfig(path, cmd.Flags())
	require.NoError(t, err)
	assert.Equal(t, "/from/flag.db", conf.StatePath)
	assert.Equal(t, "every-call", conf.SequencePolicy)
	assert.Equal(t, []string{"a:1", "b:2"}, conf.Cluster.Seeds)
}
