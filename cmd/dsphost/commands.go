package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/justyntemme/dspplug/pkg/framework/param"
	"github.com/justyntemme/dspplug/pkg/host"
	"github.com/justyntemme/dspplug/pkg/plugins"
)

// newSystem creates a host system with every reference plugin registered.
func newSystem(e *env, opts ...host.Option) (*host.System, error) {
	opts = append([]host.Option{host.WithLogger(e.logger)}, opts...)
	sys, err := host.New(opts...)
	if err != nil {
		return nil, err
	}
	if err := plugins.Register(sys); err != nil {
		sys.Close()
		return nil, err
	}
	return sys, nil
}

// ListCmd prints the registered plugins.
type ListCmd struct{}

func (c *ListCmd) Run(e *env) error {
	sys, err := newSystem(e)
	if err != nil {
		return err
	}
	defer sys.Close()

	var rows [][]string
	for _, d := range sys.Descriptors() {
		caps, err := sys.Capabilities(d.Name)
		if err != nil {
			return err
		}
		rows = append(rows, []string{
			d.Name,
			formatVersion(d.Version),
			strconv.Itoa(d.NumInputs),
			strconv.Itoa(d.NumOutputs),
			strconv.Itoa(d.Params.Len()),
			caps.String(),
		})
	}
	fmt.Fprint(e.out, renderTable([]string{"Plugin", "Version", "In", "Out", "Params", "Callbacks"}, rows))
	return nil
}

// DescribeCmd prints one plugin's parameter table.
type DescribeCmd struct {
	Plugin string `arg:"" help:"Plugin name"`
}

func (c *DescribeCmd) Run(e *env) error {
	sys, err := newSystem(e)
	if err != nil {
		return err
	}
	defer sys.Close()

	d, err := sys.Lookup(c.Plugin)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s %s\n", TitleStyle.Render(d.Name), KeyStyle.Render(formatVersion(d.Version)))
	fmt.Fprintf(e.out, "%s %d  %s %d\n",
		KeyStyle.Render("inputs"), d.NumInputs, KeyStyle.Render("outputs"), d.NumOutputs)

	rows := make([][]string, 0, d.Params.Len())
	for i, p := range d.Params.All() {
		rows = append(rows, []string{strconv.Itoa(i), p.Name, p.Type().String(), describeRange(p), p.Description})
	}
	fmt.Fprint(e.out, renderTable([]string{"#", "Name", "Type", "Range", "Description"}, rows))
	return nil
}

func formatVersion(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", v>>16, (v>>8)&0xff, v&0xff)
}

// describeRange summarizes a parameter's bounds and default.
func describeRange(p param.Descriptor) string {
	var s string
	switch b := p.Bounds.(type) {
	case param.FloatBounds:
		s = fmt.Sprintf("%s .. %s (%s)",
			param.FormatFloat(p.Label, b.Min), param.FormatFloat(p.Label, b.Max), param.FormatFloat(p.Label, b.Default))
	case param.IntBounds:
		if b.ValueNames != nil {
			s = strings.Join(b.ValueNames, "/") + " (" + param.FormatInt(b, p.Label, b.Default) + ")"
		} else {
			s = fmt.Sprintf("%d .. %d (%s)", b.Min, b.Max, param.FormatInt(b, p.Label, b.Default))
		}
	case param.BoolBounds:
		s = param.FormatBool(b, b.Default)
	case param.DataBounds:
		s = b.DataType.String()
	}
	if p.IsReadOnly() {
		s += " read-only"
	}
	return s
}

// applySetting parses a name=value pair and sets the named parameter.
func applySetting(inst *host.Instance, setting string) error {
	name, value, ok := strings.Cut(setting, "=")
	if !ok {
		return fmt.Errorf("setting %q is not name=value", setting)
	}
	table := inst.Parameters()
	index, ok := table.Lookup(strings.TrimSpace(name))
	if !ok {
		return fmt.Errorf("%s has no parameter %q", inst.PluginName(), name)
	}
	p, err := table.At(index)
	if err != nil {
		return err
	}
	switch b := p.Bounds.(type) {
	case param.FloatBounds:
		v, err := param.ParseFloat(p.Label, value)
		if err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
		return inst.SetParameterFloat(index, v)
	case param.IntBounds:
		v, err := param.ParseInt(b, value)
		if err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
		return inst.SetParameterInt(index, v)
	case param.BoolBounds:
		v, err := param.ParseBool(b, value)
		if err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
		return inst.SetParameterBool(index, v)
	}
	return fmt.Errorf("%s is a %s parameter and cannot be set from the command line", p.Name, p.Type())
}

// describeValues reports the display string of every non-data parameter.
func describeValues(inst *host.Instance) [][]string {
	var rows [][]string
	for i, p := range inst.Parameters().All() {
		var display string
		var err error
		switch p.Type() {
		case param.TypeFloat:
			_, display, err = inst.GetParameterFloat(i)
		case param.TypeInt:
			_, display, err = inst.GetParameterInt(i)
		case param.TypeBool:
			_, display, err = inst.GetParameterBool(i)
		default:
			continue
		}
		if err != nil {
			display = err.Error()
		}
		rows = append(rows, []string{p.Name, display})
	}
	return rows
}
