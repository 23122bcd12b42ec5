package plugin

import "strings"

// Capabilities is the set of optional callbacks a plugin implements.
type Capabilities uint32

const (
	CapCreate Capabilities = 1 << iota
	CapRelease
	CapReset
	CapProcess
	CapRead
	CapSetPosition
	CapShouldIProcess
	CapFloatParams
	CapIntParams
	CapBoolParams
	CapDataParams
	CapSystemRegister
	CapSystemDeregister
	CapSystemMix
)

var capNames = []struct {
	cap  Capabilities
	name string
}{
	{CapCreate, "create"},
	{CapRelease, "release"},
	{CapReset, "reset"},
	{CapProcess, "process"},
	{CapRead, "read"},
	{CapSetPosition, "setposition"},
	{CapShouldIProcess, "shouldiprocess"},
	{CapFloatParams, "float"},
	{CapIntParams, "int"},
	{CapBoolParams, "bool"},
	{CapDataParams, "data"},
	{CapSystemRegister, "sysregister"},
	{CapSystemDeregister, "sysderegister"},
	{CapSystemMix, "sysmix"},
}

// Has reports whether every capability in c is present.
func (c Capabilities) Has(want Capabilities) bool { return c&want == want }

func (c Capabilities) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	for _, n := range capNames {
		if c.Has(n.cap) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Dispatch is the resolved callback table. Fields for missing capabilities
// are nil; Caps records which are set.
type Dispatch struct {
	Caps Capabilities

	Create           Creator
	Release          Releaser
	Reset            Resetter
	Process          Processor
	Read             Reader
	SetPosition      Positioner
	ShouldIProcess   IdleChecker
	Float            FloatParams
	Int              IntParams
	Bool             BoolParams
	Data             DataParams
	SystemRegister   SystemRegisterer
	SystemDeregister SystemDeregisterer
	SystemMix        SystemMixer
}

// Resolve discovers the capabilities of callbacks. When both processing
// styles are implemented Process wins and Read is dropped.
func Resolve(callbacks any) Dispatch {
	var d Dispatch
	if callbacks == nil {
		return d
	}
	if v, ok := callbacks.(Creator); ok {
		d.Create, d.Caps = v, d.Caps|CapCreate
	}
	if v, ok := callbacks.(Releaser); ok {
		d.Release, d.Caps = v, d.Caps|CapRelease
	}
	if v, ok := callbacks.(Resetter); ok {
		d.Reset, d.Caps = v, d.Caps|CapReset
	}
	if v, ok := callbacks.(Processor); ok {
		d.Process, d.Caps = v, d.Caps|CapProcess
	} else if v, ok := callbacks.(Reader); ok {
		d.Read, d.Caps = v, d.Caps|CapRead
	}
	if v, ok := callbacks.(Positioner); ok {
		d.SetPosition, d.Caps = v, d.Caps|CapSetPosition
	}
	if v, ok := callbacks.(IdleChecker); ok {
		d.ShouldIProcess, d.Caps = v, d.Caps|CapShouldIProcess
	}
	if v, ok := callbacks.(FloatParams); ok {
		d.Float, d.Caps = v, d.Caps|CapFloatParams
	}
	if v, ok := callbacks.(IntParams); ok {
		d.Int, d.Caps = v, d.Caps|CapIntParams
	}
	if v, ok := callbacks.(BoolParams); ok {
		d.Bool, d.Caps = v, d.Caps|CapBoolParams
	}
	if v, ok := callbacks.(DataParams); ok {
		d.Data, d.Caps = v, d.Caps|CapDataParams
	}
	if v, ok := callbacks.(SystemRegisterer); ok {
		d.SystemRegister, d.Caps = v, d.Caps|CapSystemRegister
	}
	if v, ok := callbacks.(SystemDeregisterer); ok {
		d.SystemDeregister, d.Caps = v, d.Caps|CapSystemDeregister
	}
	if v, ok := callbacks.(SystemMixer); ok {
		d.SystemMix, d.Caps = v, d.Caps|CapSystemMix
	}
	return d
}
