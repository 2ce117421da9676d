package flake

import "errors"

var (
	ErrIO                 = errors.New("i/o failure")
	ErrLock               = errors.New("state lock failure")
	ErrCorruptState       = errors.New("corrupt generator state")
	ErrNoNetworkInterface = errors.New("no usable network interface")
	ErrNodeConflict       = errors.New("node id is advertised by another cluster member")
	ErrUnsupported        = errors.New("operation not supported on this platform")
)

// Error is a failure carrying one of the kinds above.
type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind, so errors.Is(err, ErrLock) works without unwrapping by hand.
func (e *Error) Is(target error) bool { return e.Kind == target }

func newError(kind error, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}
