// Package host runs DSP plugins the way a real-time mixer does: it keeps a
// per-system registry of plugin descriptors, hands every instance a service
// table, drives the instance lifecycle and enforces the two-phase
// processing protocol.
package host

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/justyntemme/dspplug/pkg/abi"
	"github.com/justyntemme/dspplug/pkg/framework/debug"
	"github.com/justyntemme/dspplug/pkg/plugin"
)

var systemIDs atomic.Int32

// entry is one registered descriptor with its resolved callbacks.
type entry struct {
	desc     *plugin.Descriptor
	dispatch plugin.Dispatch
	live     atomic.Int32 // instances not yet released
}

// System is one mixer: a registry of plugin types plus the settings,
// memory budget and log queue shared by their instances.
type System struct {
	id     int
	cfg    Config
	logger *debug.Logger
	log    *debug.Async
	memory *ledger

	listeners atomic.Pointer[[]abi.Attributes3D]
	instances atomic.Uint64

	mu      sync.RWMutex
	entries map[string]*entry
	order   []*entry
	closed  bool
}

// New creates a system. Options are applied over DefaultConfig.
func New(opts ...Option) (*System, error) {
	cfg := applyOptions(opts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &System{
		id:      int(systemIDs.Add(1)),
		cfg:     cfg,
		logger:  cfg.Logger,
		log:     debug.NewAsync(cfg.Logger, cfg.LogQueue),
		memory:  newLedger(cfg.MemoryBudget),
		entries: make(map[string]*entry),
	}
	s.logger.Info("system %d: %d Hz, %d frames, mixer %s, output %s",
		s.id, cfg.SampleRate, cfg.BlockSize, cfg.MixerMode, cfg.OutputMode)
	return s, nil
}

// ID returns the system object index handed to plugins.
func (s *System) ID() int { return s.id }

// Config returns the system settings.
func (s *System) Config() Config { return s.cfg }

// systemState is the state passed to system-wide callbacks.
func (s *System) systemState(e *entry) *plugin.State {
	return &plugin.State{
		SystemObject: s.id,
		Functions:    newServices(s, e.desc.UserData),
	}
}

// Register validates desc, resolves its callbacks and runs its
// SystemRegister callback. A plugin that fails SystemRegister is not
// registered.
func (s *System) Register(desc *plugin.Descriptor) error {
	if err := desc.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("register %s on closed system: %w", desc.Name, abi.ErrInvalidState)
	}
	if _, ok := s.entries[desc.Name]; ok {
		return fmt.Errorf("plugin %s: %w", desc.Name, abi.ErrAlreadyRegistered)
	}

	e := &entry{desc: desc, dispatch: plugin.Resolve(desc.Callbacks)}
	if e.dispatch.SystemRegister != nil {
		err := guard("system register", func() error {
			return e.dispatch.SystemRegister.SystemRegister(s.systemState(e))
		})
		if err != nil {
			return fmt.Errorf("plugin %s: %w", desc.Name, err)
		}
	}
	s.entries[desc.Name] = e
	s.order = append(s.order, e)
	s.logger.Debug("registered %s v%#x caps=%s", desc.Name, desc.Version, e.dispatch.Caps)
	return nil
}

// Deregister removes a plugin type and runs its SystemDeregister callback.
// Types with live instances cannot be removed.
func (s *System) Deregister(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("plugin %q: %w", name, abi.ErrNotFound)
	}
	if n := e.live.Load(); n > 0 {
		return fmt.Errorf("plugin %s has %d live instances: %w", name, n, abi.ErrInvalidState)
	}
	delete(s.entries, name)
	for i, o := range s.order {
		if o == e {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return s.deregister(e)
}

func (s *System) deregister(e *entry) error {
	if e.dispatch.SystemDeregister == nil {
		return nil
	}
	err := guard("system deregister", func() error {
		return e.dispatch.SystemDeregister.SystemDeregister(s.systemState(e))
	})
	if err != nil {
		s.logger.Warn("deregister %s: %v", e.desc.Name, err)
		return fmt.Errorf("plugin %s: %w", e.desc.Name, err)
	}
	return nil
}

// Descriptors returns the registered descriptors in registration order.
func (s *System) Descriptors() []*plugin.Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*plugin.Descriptor, len(s.order))
	for i, e := range s.order {
		out[i] = e.desc
	}
	return out
}

func (s *System) lookup(name string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("system %d is closed: %w", s.id, abi.ErrInvalidState)
	}
	e, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("plugin %q: %w", name, abi.ErrNotFound)
	}
	return e, nil
}

// Lookup returns the descriptor registered under name.
func (s *System) Lookup(name string) (*plugin.Descriptor, error) {
	e, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return e.desc, nil
}

// Capabilities returns the callbacks resolved for a registered plugin.
func (s *System) Capabilities(name string) (plugin.Capabilities, error) {
	e, err := s.lookup(name)
	if err != nil {
		return 0, err
	}
	return e.dispatch.Caps, nil
}

// Mix tells every plugin type with a SystemMix callback that the mixer
// reached stage. Failures are collected; every plugin is still called.
func (s *System) Mix(stage plugin.MixStage) error {
	s.mu.RLock()
	entries := append([]*entry(nil), s.order...)
	s.mu.RUnlock()

	var errs []error
	for _, e := range entries {
		if e.dispatch.SystemMix == nil {
			continue
		}
		err := guard("system mix", func() error {
			return e.dispatch.SystemMix.SystemMix(s.systemState(e), stage)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("plugin %s %s: %w", e.desc.Name, stage, err))
		}
	}
	return errors.Join(errs...)
}

// SetListeners replaces the listener positions returned by
// Services.ListenerAttributes.
func (s *System) SetListeners(listeners []abi.Attributes3D) error {
	if len(listeners) > abi.MaxListeners {
		return fmt.Errorf("%d listeners, at most %d: %w", len(listeners), abi.MaxListeners, abi.ErrInvalidParam)
	}
	l := append([]abi.Attributes3D(nil), listeners...)
	s.listeners.Store(&l)
	return nil
}

// Listeners returns the current listener positions.
func (s *System) Listeners() []abi.Attributes3D {
	if l := s.listeners.Load(); l != nil {
		return *l
	}
	return nil
}

// Memory returns outstanding allocations of every instance on the system.
func (s *System) Memory() MemoryStats { return s.memory.stats() }

// DroppedLogs returns how many plugin log messages were discarded because
// the queue was full.
func (s *System) DroppedLogs() uint64 { return s.log.Dropped() }

// Close deregisters every plugin type and flushes the log queue. Instances
// should be released first; their memory is reported as leaked otherwise.
func (s *System) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	entries := s.order
	s.order = nil
	s.entries = nil
	s.mu.Unlock()

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if n := e.live.Load(); n > 0 {
			s.logger.Warn("closing with %d live %s instances", n, e.desc.Name)
		}
		if err := s.deregister(e); err != nil {
			errs = append(errs, err)
		}
	}
	if leaked := s.memory.stats().Outstanding(); len(leaked) > 0 {
		s.logger.Warn("system %d closed with %d bytes outstanding", s.id, leaked.Total())
	}
	s.log.Close()
	return errors.Join(errs...)
}

// guard runs fn and turns a panic into ErrInternal.
func guard(op string, fn func() error) (err error) {
	defer recoverPanic(op, &err)
	return fn()
}

func recoverPanic(op string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s panicked: %v: %w", op, r, abi.ErrInternal)
	}
}
