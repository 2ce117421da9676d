// Command echo is a maelstrom node that replies to "echo" with its payload.
package main

import (
	"encoding/json"
	"os"

	maelstrom "github.com/jepsen-io/maelstrom/demo/go"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/pxLi-io/flake"
)

func main() {
	cmd := &cobra.Command{
		Use:          "echo",
		Short:        "Serve maelstrom echo requests",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := flake.NewSugar(os.Stderr, zapcore.InfoLevel)
			defer func() { _ = logger.Sync() }()

			n := maelstrom.NewNode()
			n.Handle("echo", func(msg maelstrom.Message) error {
				body, err := echoReply(msg.Body)
				if err != nil {
					return maelstrom.NewRPCError(maelstrom.MalformedRequest, err.Error())
				}
				return n.Reply(msg, body)
			})
			logger.Info("serving echo")
			return n.Run()
		},
	}
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func echoReply(raw json.RawMessage) (map[string]any, error) {
	var body struct {
		Echo json.RawMessage `json:"echo"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, errors.Wrap(err, "decode echo body")
	}
	return map[string]any{
		"type": "echo_ok",
		"echo": body.Echo,
	}, nil
}
