// Command unique-id is a maelstrom node answering "generate" requests with
// identifiers from a state file shared by every node process on the host.
package main

import (
	"errors"
	"os"

	maelstrom "github.com/jepsen-io/maelstrom/demo/go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pxLi-io/flake"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	conf := flake.DefaultConfig()
	var configPath string

	cmd := &cobra.Command{
		Use:          "unique-id",
		Short:        "Serve maelstrom generate requests",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				loaded, err := loadConfig(configPath, cmd.Flags())
				if err != nil {
					return err
				}
				conf = loaded
			}
			if err := conf.Validate(); err != nil {
				return err
			}
			return run(conf)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file; flags given explicitly take precedence")
	conf.BindFlags(cmd.Flags())
	return cmd
}

// loadConfig reads path and re-applies the flags the user set explicitly.
func loadConfig(path string, changed *pflag.FlagSet) (flake.Config, error) {
	conf, err := flake.LoadConfig(path)
	if err != nil {
		return conf, err
	}
	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	conf.BindFlags(fs)

	var setErr error
	changed.Visit(func(f *pflag.Flag) {
		dst := fs.Lookup(f.Name)
		if dst == nil || setErr != nil {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			setErr = dst.Value.(pflag.SliceValue).Replace(sv.GetSlice())
			return
		}
		setErr = dst.Value.Set(f.Value.String())
	})
	return conf, setErr
}

func run(conf flake.Config) error {
	level, err := conf.Level()
	if err != nil {
		return err
	}
	logger := flake.NewSugar(os.Stderr, level)
	defer func() { _ = logger.Sync() }()

	opts, err := conf.Options()
	if err != nil {
		return err
	}
	opts = append(opts, flake.WithLogger(logger))

	if conf.Cluster.Enabled {
		r, err := conf.Resolver()
		if err != nil {
			return err
		}
		nodeID, err := r.Resolve()
		if err != nil {
			return err
		}
		guard, err := flake.NewGuard(conf.GuardConfig(), nodeID, logger)
		if err != nil {
			return err
		}
		defer func() { _ = guard.Shutdown() }()
		go guard.Serve()
		if _, err := guard.Join(); err != nil {
			logger.Warnw("continuing without cluster peers", "error", err)
		}
		opts = append(opts, flake.WithGuard(guard))
	}

	gen := flake.New(conf.StatePath, opts...)
	n := maelstrom.NewNode()
	n.Handle("generate", generateHandler(n, gen))

	logger.Infow("serving", "state", conf.StatePath, "sequence_policy", conf.SequencePolicy, "node_fold", conf.NodeFold)
	err = n.Run()
	logger.Infow("stopped", "stats", gen.Stats())
	return err
}

type identifierGenerator interface {
	Generate() (flake.Identifier, error)
}

type replier interface {
	Reply(req maelstrom.Message, body any) error
}

func generateHandler(n replier, gen identifierGenerator) maelstrom.HandlerFunc {
	return func(msg maelstrom.Message) error {
		id, err := gen.Generate()
		if err != nil {
			return rpcError(err)
		}
		return n.Reply(msg, map[string]any{
			"type": "generate_ok",
			"id":   id.String(),
		})
	}
}

// rpcError maps generator failures onto maelstrom error codes. Lock and I/O
// failures may clear up on retry; the rest need an operator.
func rpcError(err error) *maelstrom.RPCError {
	code := maelstrom.Crash
	if errors.Is(err, flake.ErrLock) || errors.Is(err, flake.ErrIO) {
		code = maelstrom.TemporarilyUnavailable
	}
	return maelstrom.NewRPCError(code, err.Error())
}
