package flake

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// DefaultNetDir is where Linux exposes one entry per network interface.
const DefaultNetDir = "/sys/class/net"

const iffLoopback = 0x8

// NodeSource yields the node id stamped into identifiers.
type NodeSource interface {
	Resolve() (uint64, error)
}

// InterfaceSelect decides which interface entry feeds the node id.
type InterfaceSelect int

const (
	// SelectFirstNonLoopback takes the first entry, in name order, that is not
	// a loopback device and has a non-zero address.
	SelectFirstNonLoopback InterfaceSelect = iota
	// SelectPositional takes the second entry in name order and assumes the
	// first one is loopback. Kept for hosts that already persisted ids with it.
	SelectPositional
)

func (s InterfaceSelect) String() string {
	switch s {
	case SelectFirstNonLoopback:
		return "first-non-loopback"
	case SelectPositional:
		return "positional"
	default:
		return "unknown"
	}
}

func ParseInterfaceSelect(s string) (InterfaceSelect, error) {
	switch s {
	case "", "first-non-loopback":
		return SelectFirstNonLoopback, nil
	case "positional":
		return SelectPositional, nil
	}
	return 0, errors.Errorf("unknown interface selection %q", s)
}

// NodeFold decides how an address becomes a 64-bit node id.
type NodeFold int

const (
	// NodeFoldOctets folds the parsed hardware address, one octet at a time.
	NodeFoldOctets NodeFold = iota
	// NodeFoldRaw folds every byte of the address file text, colons and the
	// trailing newline included. Only the last eight bytes of the text survive.
	NodeFoldRaw
	// NodeFoldXXHash hashes the parsed hardware address.
	NodeFoldXXHash
)

func (f NodeFold) String() string {
	switch f {
	case NodeFoldOctets:
		return "octets"
	case NodeFoldRaw:
		return "raw"
	case NodeFoldXXHash:
		return "xxhash"
	default:
		return "unknown"
	}
}

func ParseNodeFold(s string) (NodeFold, error) {
	switch s {
	case "", "octets":
		return NodeFoldOctets, nil
	case "raw":
		return NodeFoldRaw, nil
	case "xxhash":
		return NodeFoldXXHash, nil
	}
	return 0, errors.Errorf("unknown node fold %q", s)
}

// Resolver derives the node id from the host's interface directory.
type Resolver struct {
	Dir    string
	Select InterfaceSelect
	Fold   NodeFold
}

func (r *Resolver) Resolve() (uint64, error) {
	dir := r.Dir
	if dir == "" {
		dir = DefaultNetDir
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, newError(ErrIO, "list interfaces", dir, errors.WithStack(err))
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	var (
		name string
		raw  []byte
	)
	switch r.Select {
	case SelectPositional:
		name, raw, err = pickPositional(dir, names)
	default:
		name, raw, err = pickFirstNonLoopback(dir, names)
	}
	if err != nil {
		return 0, err
	}
	return fold(r.Fold, filepath.Join(dir, name, "address"), raw)
}

func pickPositional(dir string, names []string) (string, []byte, error) {
	if len(names) < 2 {
		return "", nil, newError(ErrNoNetworkInterface, "select interface", dir,
			errors.Errorf("found %d entries, need at least 2", len(names)))
	}
	name := names[1]
	path := filepath.Join(dir, name, "address")
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", nil, newError(ErrIO, "read address", path, errors.WithStack(err))
	}
	return name, raw, nil
}

func pickFirstNonLoopback(dir string, names []string) (string, []byte, error) {
	for _, name := range names {
		if strings.HasPrefix(name, "lo") || isLoopback(filepath.Join(dir, name, "flags")) {
			continue
		}
		// entries such as bonding_masters have no address file
		raw, err := os.ReadFile(filepath.Join(dir, name, "address"))
		if err != nil || zeroAddress(raw) {
			continue
		}
		return name, raw, nil
	}
	return "", nil, newError(ErrNoNetworkInterface, "select interface", dir,
		errors.Errorf("none of %d entries is a non-loopback interface with an address", len(names)))
}

func isLoopback(flagsPath string) bool {
	b, err := os.ReadFile(flagsPath)
	if err != nil {
		return false
	}
	flags, err := strconv.ParseUint(strings.TrimSpace(string(b)), 0, 64)
	if err != nil {
		return false
	}
	return flags&iffLoopback != 0
}

func zeroAddress(raw []byte) bool {
	return strings.Trim(string(raw), "0:-. \t\r\n") == ""
}

func fold(mode NodeFold, path string, raw []byte) (uint64, error) {
	if mode == NodeFoldRaw {
		return foldBytes(raw), nil
	}

	hw, err := net.ParseMAC(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, newError(ErrIO, "parse address", path, errors.WithStack(err))
	}
	if mode == NodeFoldXXHash {
		return xxhash.Sum64(hw), nil
	}
	return foldBytes(hw), nil
}

func foldBytes(b []byte) uint64 {
	var acc uint64
	for _, c := range b {
		acc = acc<<8 + uint64(c)
	}
	return acc
}
