package host

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/justyntemme/dspplug/pkg/abi"
	"github.com/justyntemme/dspplug/pkg/framework/bus"
	"github.com/justyntemme/dspplug/pkg/framework/debug"
	"github.com/justyntemme/dspplug/pkg/framework/param"
	"github.com/justyntemme/dspplug/pkg/framework/process"
	"github.com/justyntemme/dspplug/pkg/framework/state"
	"github.com/justyntemme/dspplug/pkg/plugin"
)

// Lifecycle is the state of an instance.
type Lifecycle int32

const (
	// LifecycleCreated instances have not processed since create or reset.
	LifecycleCreated Lifecycle = iota + 1
	LifecycleActive
	LifecycleReleased
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleCreated:
		return "created"
	case LifecycleActive:
		return "active"
	case LifecycleReleased:
		return "released"
	}
	return fmt.Sprintf("lifecycle(%d)", int32(l))
}

// Instance is one live DSP unit. Process, Reset and SetPosition belong to
// the processing thread; parameter calls and Release to the control
// thread. Release waits for an in-flight processing call.
type Instance struct {
	sys    *System
	entry  *entry
	desc   *plugin.Descriptor
	d      plugin.Dispatch
	svc    *services
	logger *debug.Logger

	// ctl is read-held by parameter calls and write-held by Release.
	ctl   sync.RWMutex
	// mu is held for the duration of every processing-thread call.
	mu    sync.Mutex
	state plugin.State
	life  atomic.Int32

	needsReset bool
	pending    atomic.Bool
	position   atomic.Uint64
	sidechain  atomic.Bool

	clock     uint64
	ctx       *process.Context
	proposal  bus.Shape
	committed bus.Shape
	noInput   bus.Array
	readIn    []float32
	readOut   []float32
	side      []float32

	inMeter  *process.Meter
	outMeter *process.Meter
	load     debug.LoadMeter
	profiler *debug.Profiler
}

var _ state.Target = (*Instance)(nil)

// Create instantiates a registered plugin. When the plugin's Create
// callback fails nothing further is called on it.
func (s *System) Create(name string) (*Instance, error) {
	e, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	cfg := s.cfg
	i := &Instance{
		sys:        s,
		entry:      e,
		desc:       e.desc,
		d:          e.dispatch,
		svc:        newServices(s, e.desc.UserData),
		logger:     s.logger.With(e.desc.Name),
		needsReset: true,
		ctx:        process.NewContext(cfg.BlockSize, bus.MaxChannels, float64(cfg.SampleRate)),
		noInput:    bus.Array{SpeakerMode: cfg.MixerMode},
		readIn:     make([]float32, cfg.BlockSize*bus.MaxChannels),
		readOut:    make([]float32, cfg.BlockSize*bus.MaxChannels),
		side:       make([]float32, cfg.BlockSize*bus.MaxChannels),
		inMeter:    process.NewMeter(cfg.BlockSize),
		outMeter:   process.NewMeter(cfg.BlockSize),
		profiler:   debug.NewProfiler(256),
	}
	i.state = plugin.State{
		Instance:     s.instances.Add(1),
		Functions:    i.svc,
		SystemObject: s.id,
	}
	i.SetMetering(cfg.Metering)

	e.live.Add(1)
	if i.d.Create != nil {
		if err := guard("create", func() error { return i.d.Create.Create(&i.state) }); err != nil {
			e.live.Add(-1)
			i.reclaim()
			return nil, fmt.Errorf("create %s: %w", name, err)
		}
	}
	i.life.Store(int32(LifecycleCreated))
	i.logger.Debug("instance %d created", i.state.Instance)
	return i, nil
}

// Handle returns the instance's unique handle.
func (i *Instance) Handle() uint64 { return i.state.Instance }

// PluginName returns the name of the instance's plugin type.
func (i *Instance) PluginName() string { return i.desc.Name }

// Descriptor returns the plugin type's descriptor.
func (i *Instance) Descriptor() *plugin.Descriptor { return i.desc }

// Parameters returns the plugin's parameter descriptors.
func (i *Instance) Parameters() *param.Table { return i.desc.Params }

// Capabilities returns the callbacks the plugin implements.
func (i *Instance) Capabilities() plugin.Capabilities { return i.d.Caps }

// Lifecycle returns the current state.
func (i *Instance) Lifecycle() Lifecycle { return Lifecycle(i.life.Load()) }

func (i *Instance) released() bool { return i.Lifecycle() == LifecycleReleased }

func (i *Instance) errReleased() error {
	return fmt.Errorf("%s instance %d released: %w", i.desc.Name, i.state.Instance, abi.ErrInvalidState)
}

// Reset clears the plugin's history. It is safe to call repeatedly.
func (i *Instance) Reset() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.released() {
		return i.errReleased()
	}
	if err := i.reset(); err != nil {
		return err
	}
	i.life.Store(int32(LifecycleCreated))
	return nil
}

// reset runs the Reset callback. Callers hold mu.
func (i *Instance) reset() error {
	i.needsReset = false
	if i.d.Reset == nil {
		return nil
	}
	if err := guard("reset", func() error { return i.d.Reset.Reset(&i.state) }); err != nil {
		return fmt.Errorf("reset %s: %w", i.desc.Name, err)
	}
	return nil
}

// SetPosition records a seek. The plugin hears about it on the processing
// thread before the next block.
func (i *Instance) SetPosition(pos uint64) error {
	if i.released() {
		return i.errReleased()
	}
	i.position.Store(pos)
	i.pending.Store(true)
	return nil
}

// RepositionPending reports whether a seek has not been delivered yet.
func (i *Instance) RepositionPending() bool { return i.pending.Load() }

// deliverPosition hands a pending seek to the plugin. Callers hold mu.
func (i *Instance) deliverPosition() {
	if !i.pending.Swap(false) || i.d.SetPosition == nil {
		return
	}
	pos := i.position.Load()
	if err := guard("setposition", func() error { return i.d.SetPosition.SetPosition(&i.state, pos) }); err != nil {
		i.logger.Warn("set position %d: %v", pos, err)
	}
}

// Release waits for processing to finish, calls the plugin's Release
// callback and reports memory the plugin did not free. Every later call on
// the instance fails with ErrInvalidState.
func (i *Instance) Release() error {
	i.ctl.Lock()
	defer i.ctl.Unlock()
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.released() {
		return i.errReleased()
	}
	i.life.Store(int32(LifecycleReleased))
	i.entry.live.Add(-1)

	var err error
	if i.d.Release != nil {
		err = guard("release", func() error { return i.d.Release.Release(&i.state) })
		if err != nil {
			err = fmt.Errorf("release %s: %w", i.desc.Name, err)
		}
	}
	i.reclaim()
	i.state.PluginData = nil
	i.logger.Debug("instance %d released", i.state.Instance)
	return err
}

// reclaim logs and returns to the system budget whatever the instance
// still holds.
func (i *Instance) reclaim() {
	for _, u := range i.svc.stats().Outstanding() {
		i.logger.Warn("instance %d leaked %d bytes in %d blocks of %s memory",
			i.state.Instance, u.Bytes, u.Blocks, u.Kind)
		i.sys.memory.reclaim(u)
		i.svc.own.reclaim(u)
	}
}

// Memory returns the instance's outstanding allocations.
func (i *Instance) Memory() MemoryStats { return i.svc.stats() }

// SetMetering turns input and output level metering on or off.
func (i *Instance) SetMetering(on bool) {
	i.inMeter.SetEnabled(on)
	i.outMeter.SetEnabled(on)
	i.profiler.SetEnabled(on)
}

// InputLevels returns the levels of the last block's main input.
func (i *Instance) InputLevels() process.Levels { return i.inMeter.Snapshot() }

// OutputLevels returns the levels of the last block's output.
func (i *Instance) OutputLevels() process.Levels { return i.outMeter.Snapshot() }

// CPULoad returns the smoothed share of the block budget processing took,
// in percent.
func (i *Instance) CPULoad() float64 { return i.load.Load() }

// ExclusiveTime returns how long the last block took inside the plugin.
func (i *Instance) ExclusiveTime() time.Duration { return i.load.Exclusive() }

// Profile reports per-operation timings collected while metering is on.
func (i *Instance) Profile() string { return i.profiler.Report() }

// Clock returns the sample clock of the next block.
func (i *Instance) Clock() uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.clock
}

// parameter validates a parameter call before the plugin sees it.
func (i *Instance) parameter(index int, want param.Type, set bool) (param.Descriptor, error) {
	if i.released() {
		return param.Descriptor{}, i.errReleased()
	}
	d, err := i.desc.Params.At(index)
	if err != nil {
		return d, fmt.Errorf("%s: %w", i.desc.Name, err)
	}
	if d.Type() != want {
		return d, fmt.Errorf("%s parameter %d (%s) is %s, not %s: %w",
			i.desc.Name, index, d.Name, d.Type(), want, abi.ErrParamType)
	}
	if set && d.IsReadOnly() {
		return d, fmt.Errorf("%s parameter %d (%s): %w", i.desc.Name, index, d.Name, abi.ErrReadOnly)
	}
	return d, nil
}

func (i *Instance) unsupported(op string) error {
	return fmt.Errorf("%s has no %s parameter callbacks: %w", i.desc.Name, op, abi.ErrUnsupported)
}

// SetParameterFloat sets a float parameter.
func (i *Instance) SetParameterFloat(index int, v float32) error {
	i.ctl.RLock()
	defer i.ctl.RUnlock()
	if _, err := i.parameter(index, param.TypeFloat, true); err != nil {
		return err
	}
	if i.d.Float == nil {
		return i.unsupported("float")
	}
	return guard("set float", func() error { return i.d.Float.SetParameterFloat(&i.state, index, v) })
}

// GetParameterFloat returns a float parameter and its display string.
func (i *Instance) GetParameterFloat(index int) (v float32, display string, err error) {
	i.ctl.RLock()
	defer i.ctl.RUnlock()
	if _, err = i.parameter(index, param.TypeFloat, false); err != nil {
		return 0, "", err
	}
	if i.d.Float == nil {
		return 0, "", i.unsupported("float")
	}
	defer recoverPanic("get float", &err)
	v, display, err = i.d.Float.GetParameterFloat(&i.state, index)
	return v, abi.TruncateValueString(display), err
}

// SetParameterInt sets an int parameter.
func (i *Instance) SetParameterInt(index int, v int32) error {
	i.ctl.RLock()
	defer i.ctl.RUnlock()
	if _, err := i.parameter(index, param.TypeInt, true); err != nil {
		return err
	}
	if i.d.Int == nil {
		return i.unsupported("int")
	}
	return guard("set int", func() error { return i.d.Int.SetParameterInt(&i.state, index, v) })
}

// GetParameterInt returns an int parameter and its display string.
func (i *Instance) GetParameterInt(index int) (v int32, display string, err error) {
	i.ctl.RLock()
	defer i.ctl.RUnlock()
	if _, err = i.parameter(index, param.TypeInt, false); err != nil {
		return 0, "", err
	}
	if i.d.Int == nil {
		return 0, "", i.unsupported("int")
	}
	defer recoverPanic("get int", &err)
	v, display, err = i.d.Int.GetParameterInt(&i.state, index)
	return v, abi.TruncateValueString(display), err
}

// SetParameterBool sets a bool parameter.
func (i *Instance) SetParameterBool(index int, v bool) error {
	i.ctl.RLock()
	defer i.ctl.RUnlock()
	if _, err := i.parameter(index, param.TypeBool, true); err != nil {
		return err
	}
	if i.d.Bool == nil {
		return i.unsupported("bool")
	}
	return guard("set bool", func() error { return i.d.Bool.SetParameterBool(&i.state, index, v) })
}

// GetParameterBool returns a bool parameter and its display string.
func (i *Instance) GetParameterBool(index int) (v bool, display string, err error) {
	i.ctl.RLock()
	defer i.ctl.RUnlock()
	if _, err = i.parameter(index, param.TypeBool, false); err != nil {
		return false, "", err
	}
	if i.d.Bool == nil {
		return false, "", i.unsupported("bool")
	}
	defer recoverPanic("get bool", &err)
	v, display, err = i.d.Bool.GetParameterBool(&i.state, index)
	return v, abi.TruncateValueString(display), err
}

// SetParameterData sets a data parameter. data is only borrowed for the
// call. Enabling a sidechain parameter makes the host fill State.Sidechain
// from the second input buffer onwards.
func (i *Instance) SetParameterData(index int, data []byte) error {
	i.ctl.RLock()
	defer i.ctl.RUnlock()
	d, err := i.parameter(index, param.TypeData, true)
	if err != nil {
		return err
	}
	if i.d.Data == nil {
		return i.unsupported("data")
	}
	b, _ := d.Data()
	var sc abi.Sidechain
	if b.DataType == abi.DataSidechain {
		if err := abi.Decode(data, &sc); err != nil {
			return fmt.Errorf("%s sidechain payload: %w", i.desc.Name, err)
		}
	}
	if err := guard("set data", func() error { return i.d.Data.SetParameterData(&i.state, index, data) }); err != nil {
		return err
	}
	if b.DataType == abi.DataSidechain {
		i.sidechain.Store(sc.Enable != 0)
	}
	return nil
}

// GetParameterData returns a data parameter. The slice belongs to the
// plugin and is only valid until the next call on the instance.
func (i *Instance) GetParameterData(index int) (data []byte, display string, err error) {
	i.ctl.RLock()
	defer i.ctl.RUnlock()
	if _, err = i.parameter(index, param.TypeData, false); err != nil {
		return nil, "", err
	}
	if i.d.Data == nil {
		return nil, "", i.unsupported("data")
	}
	defer recoverPanic("get data", &err)
	data, display, err = i.d.Data.GetParameterData(&i.state, index)
	return data, abi.TruncateValueString(display), err
}
