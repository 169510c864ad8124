// Package bus is the command bus and snapshot store. It owns the aggregate
// state, routes every command to exactly one partition and notifies
// subscribers with the replaced snapshot.
package bus

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/coursedash/dashboard/internal/platform/apperr"
)

var ErrStoreClosed = errors.New("store is closed")

// Command is a typed request to change one partition's state.
type Command interface {
	CommandType() string
}

// Validator is implemented by commands whose payload can be malformed. A
// failing Validate keeps the command away from the transition functions.
type Validator interface {
	Validate() error
}

// Route binds a partition to the command types it owns. Apply must replace
// only that partition's part of the aggregate.
type Route[S any] struct {
	Partition string
	Commands  []string
	Apply     func(S, Command) S
}

// Applied describes one command that changed the aggregate.
type Applied struct {
	Command   Command
	Partition string
	Version   uint64
	Elapsed   time.Duration
}

// Rejected describes a command that never reached a partition.
type Rejected struct {
	Command Command
	Err     error
}

type options struct {
	onApplied  []func(Applied)
	onRejected []func(Rejected)
	now        func() time.Time
}

type Option func(*options)

// WithObserver registers a hook called after every applied command.
func WithObserver(fn func(Applied)) Option {
	return func(o *options) { o.onApplied = append(o.onApplied, fn) }
}

// WithRejectObserver registers a hook called for every rejected command.
func WithRejectObserver(fn func(Rejected)) Option {
	return func(o *options) { o.onRejected = append(o.onRejected, fn) }
}

// WithNow replaces the clock used to time dispatches.
func WithNow(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Store holds one aggregate snapshot of type S. Dispatches are serialized;
// the snapshot is replaced, never mutated in place.
type Store[S any] struct {
	mu      sync.Mutex
	state   S
	version uint64
	closed  bool
	routes  map[string]Route[S]
	subs    map[uint64]func(S)
	nextSub uint64

	// notifyMu orders subscriber delivery so a slow listener never sees an
	// older snapshot after a newer one.
	notifyMu  sync.Mutex
	delivered uint64

	opts options
}

// New registers the routes and returns a store holding initial. Bad
// registrations fail here, not on first dispatch.
func New[S any](initial S, routes []Route[S], opts ...Option) (*Store[S], error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	table := make(map[string]Route[S])
	partitions := make(map[string]bool)
	for _, route := range routes {
		name := strings.TrimSpace(route.Partition)
		if name == "" {
			return nil, apperr.Configuration("route has no partition name")
		}
		if partitions[name] {
			return nil, apperr.Configuration("partition %q registered twice", name)
		}
		partitions[name] = true
		if route.Apply == nil {
			return nil, apperr.Configuration("partition %q has no transition", name)
		}
		if len(route.Commands) == 0 {
			return nil, apperr.Configuration("partition %q declares no commands", name)
		}
		for _, commandType := range route.Commands {
			if strings.TrimSpace(commandType) == "" {
				return nil, apperr.Configuration("partition %q declares an empty command type", name)
			}
			if owner, exists := table[commandType]; exists {
				return nil, apperr.Configuration("command %q claimed by %q and %q", commandType, owner.Partition, name)
			}
			table[commandType] = route
		}
	}

	return &Store[S]{
		state:  initial,
		routes: table,
		subs:   make(map[uint64]func(S)),
		opts:   o,
	}, nil
}

// Dispatch applies cmd to its partition and returns the new snapshot after
// every subscriber has received it. Subscribers must not call Dispatch
// synchronously.
func (s *Store[S]) Dispatch(cmd Command) (S, error) {
	var zero S
	if cmd == nil {
		return zero, s.reject(cmd, apperr.Configuration("nil command"))
	}
	commandType := cmd.CommandType()
	route, ok := s.routes[commandType]
	if !ok {
		return zero, s.reject(cmd, apperr.Configuration("unknown command type %q", commandType))
	}
	if v, ok := cmd.(Validator); ok {
		if err := v.Validate(); err != nil {
			return zero, s.reject(cmd, apperr.WrapConfiguration(err, "invalid payload for %s", commandType))
		}
	}

	start := s.opts.now()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return zero, s.reject(cmd, ErrStoreClosed)
	}
	next := route.Apply(s.state, cmd)
	s.state = next
	s.version++
	version := s.version
	listeners := make([]func(S), 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	s.notify(version, next, listeners)

	applied := Applied{Command: cmd, Partition: route.Partition, Version: version, Elapsed: s.opts.now().Sub(start)}
	for _, fn := range s.opts.onApplied {
		fn(applied)
	}
	return next, nil
}

func (s *Store[S]) notify(version uint64, snapshot S, listeners []func(S)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if version <= s.delivered {
		return
	}
	s.delivered = version
	for _, fn := range listeners {
		fn(snapshot)
	}
}

func (s *Store[S]) reject(cmd Command, err error) error {
	for _, fn := range s.opts.onRejected {
		fn(Rejected{Command: cmd, Err: err})
	}
	return err
}

// Snapshot returns the current aggregate.
func (s *Store[S]) Snapshot() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Version returns how many commands have been applied.
func (s *Store[S]) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// SnapshotVersion returns the aggregate together with the version that
// produced it.
func (s *Store[S]) SnapshotVersion() (S, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.version
}

// Subscribe registers fn for every future snapshot. The returned function
// removes the subscription and is safe to call more than once.
func (s *Store[S]) Subscribe(fn func(S)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Close drops all subscribers and rejects further dispatches.
func (s *Store[S]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subs = make(map[uint64]func(S))
}

// Closed reports whether Close has been called.
func (s *Store[S]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Partitions lists the registered command types per partition, sorted.
func (s *Store[S]) Partitions() map[string][]string {
	out := make(map[string][]string)
	for commandType, route := range s.routes {
		out[route.Partition] = append(out[route.Partition], commandType)
	}
	for _, types := range out {
		slices.Sort(types)
	}
	return out
}
