package plugin

import (
	"fmt"

	"github.com/justyntemme/dspplug/pkg/abi"
	"github.com/justyntemme/dspplug/pkg/framework/param"
)

// ParamHolder is implemented by plugin private state that keeps its
// parameter values in a param.Store.
type ParamHolder interface {
	Params() *param.Store
}

// Values can be embedded in private state to satisfy ParamHolder.
type Values struct {
	Store *param.Store
}

// Params returns the store.
func (v *Values) Params() *param.Store { return v.Store }

// Base serves float, int and bool parameter calls from the param.Store of
// the instance's PluginData. Embed it in a callbacks type to get those
// capabilities; values are clamped into range and formatted for display.
type Base struct {
	Table *param.Table
}

// NewBase creates a Base over table.
func NewBase(table *param.Table) Base {
	return Base{Table: table}
}

// NewValues creates a fresh store with every parameter at its default.
func (b Base) NewValues() Values {
	return Values{Store: param.NewStore(b.Table)}
}

// Store returns the instance's parameter store.
func (b Base) Store(s *State) (*param.Store, error) {
	if s == nil {
		return nil, fmt.Errorf("nil state: %w", abi.ErrInvalidParam)
	}
	h, ok := s.PluginData.(ParamHolder)
	if !ok || h.Params() == nil {
		return nil, fmt.Errorf("instance has no parameter store: %w", abi.ErrInvalidState)
	}
	return h.Params(), nil
}

func (b Base) SetParameterFloat(s *State, index int, value float32) error {
	st, err := b.Store(s)
	if err != nil {
		return err
	}
	return st.SetFloat(index, value)
}

func (b Base) GetParameterFloat(s *State, index int) (float32, string, error) {
	st, err := b.Store(s)
	if err != nil {
		return 0, "", err
	}
	v, err := st.GetFloat(index)
	if err != nil {
		return 0, "", err
	}
	return v, st.Display(index), nil
}

func (b Base) SetParameterInt(s *State, index int, value int32) error {
	st, err := b.Store(s)
	if err != nil {
		return err
	}
	return st.SetInt(index, value)
}

func (b Base) GetParameterInt(s *State, index int) (int32, string, error) {
	st, err := b.Store(s)
	if err != nil {
		return 0, "", err
	}
	v, err := st.GetInt(index)
	if err != nil {
		return 0, "", err
	}
	return v, st.Display(index), nil
}

func (b Base) SetParameterBool(s *State, index int, value bool) error {
	st, err := b.Store(s)
	if err != nil {
		return err
	}
	return st.SetBool(index, value)
}

func (b Base) GetParameterBool(s *State, index int) (bool, string, error) {
	st, err := b.Store(s)
	if err != nil {
		return false, "", err
	}
	v, err := st.GetBool(index)
	if err != nil {
		return false, "", err
	}
	return v, st.Display(index), nil
}
