package flake

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the file and flag form of the generator settings.
type Config struct {
	StatePath      string        `yaml:"state_path"`
	SequencePolicy string        `yaml:"sequence_policy"`
	NodeFold       string        `yaml:"node_fold"`
	NodeSelect     string        `yaml:"node_select"`
	NetDir         string        `yaml:"net_dir"`
	RecoverCorrupt bool          `yaml:"recover_corrupt"`
	LogLevel       string        `yaml:"log_level"`
	Cluster        ClusterConfig `yaml:"cluster"`
}

type ClusterConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Name     string   `yaml:"name"`
	BindAddr string   `yaml:"bind_addr"`
	Port     int      `yaml:"port"`
	Seeds    []string `yaml:"seeds"`
}

func DefaultConfig() Config {
	return Config{
		StatePath:      "./state.db",
		SequencePolicy: AdvanceOnRegressionOnly.String(),
		NodeFold:       NodeFoldOctets.String(),
		NodeSelect:     SelectFirstNonLoopback.String(),
		NetDir:         DefaultNetDir,
		LogLevel:       "info",
		Cluster: ClusterConfig{
			BindAddr: "0.0.0.0",
			Port:     7946,
		},
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (Config, error) {
	conf := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return conf, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(b, &conf); err != nil {
		return conf, errors.Wrapf(err, "parse config %s", path)
	}
	return conf, conf.Validate()
}

// BindFlags registers one flag per setting, defaulting to the current values.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.StatePath, "state", c.StatePath, "path of the shared state file")
	fs.StringVar(&c.SequencePolicy, "sequence-policy", c.SequencePolicy, "when the clock sequence advances: regression-only or every-call")
	fs.StringVar(&c.NodeFold, "node-fold", c.NodeFold, "node id derivation: octets, raw or xxhash")
	fs.StringVar(&c.NodeSelect, "node-select", c.NodeSelect, "interface selection: first-non-loopback or positional")
	fs.StringVar(&c.NetDir, "net-dir", c.NetDir, "directory listing network interfaces")
	fs.BoolVar(&c.RecoverCorrupt, "recover-corrupt", c.RecoverCorrupt, "reinitialize a malformed state file instead of failing")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
	fs.BoolVar(&c.Cluster.Enabled, "cluster", c.Cluster.Enabled, "gossip the node id and refuse to generate on conflicts")
	fs.StringVar(&c.Cluster.Name, "cluster-name", c.Cluster.Name, "member name, unique in the cluster")
	fs.StringVar(&c.Cluster.BindAddr, "cluster-bind", c.Cluster.BindAddr, "gossip bind address")
	fs.IntVar(&c.Cluster.Port, "cluster-port", c.Cluster.Port, "gossip port for both UDP and TCP")
	fs.StringSliceVar(&c.Cluster.Seeds, "cluster-seeds", c.Cluster.Seeds, "members to join, host:port")
}

func (c Config) Validate() error {
	if c.StatePath == "" {
		return errors.New("state path is empty")
	}
	if _, err := ParseSequencePolicy(c.SequencePolicy); err != nil {
		return err
	}
	if _, err := ParseNodeFold(c.NodeFold); err != nil {
		return err
	}
	if _, err := ParseInterfaceSelect(c.NodeSelect); err != nil {
		return err
	}
	_, err := c.Level()
	return err
}

func (c Config) Level() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return lvl, errors.Wrap(err, "log level")
	}
	return lvl, nil
}

// Resolver builds the host identity resolver the config describes.
func (c Config) Resolver() (*Resolver, error) {
	fold, err := ParseNodeFold(c.NodeFold)
	if err != nil {
		return nil, err
	}
	sel, err := ParseInterfaceSelect(c.NodeSelect)
	if err != nil {
		return nil, err
	}
	return &Resolver{Dir: c.NetDir, Select: sel, Fold: fold}, nil
}

// Options converts the config into generator options.
func (c Config) Options() ([]Option, error) {
	policy, err := ParseSequencePolicy(c.SequencePolicy)
	if err != nil {
		return nil, err
	}
	r, err := c.Resolver()
	if err != nil {
		return nil, err
	}
	return []Option{
		WithSequencePolicy(policy),
		WithNodeSource(r),
		WithRecoverCorrupt(c.RecoverCorrupt),
	}, nil
}

func (c Config) GuardConfig() GuardConfig {
	return GuardConfig{
		Name:     c.Cluster.Name,
		BindAddr: c.Cluster.BindAddr,
		BindPort: c.Cluster.Port,
		Seeds:    c.Cluster.Seeds,
	}
}
