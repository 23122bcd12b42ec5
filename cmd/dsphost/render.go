package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/go-audio/wav"

	"github.com/justyntemme/dspplug/pkg/abi"
	"github.com/justyntemme/dspplug/pkg/dsp/gain"
	"github.com/justyntemme/dspplug/pkg/framework/bus"
	"github.com/justyntemme/dspplug/pkg/framework/debug"
	"github.com/justyntemme/dspplug/pkg/framework/param"
	"github.com/justyntemme/dspplug/pkg/framework/process"
	"github.com/justyntemme/dspplug/pkg/framework/state"
	"github.com/justyntemme/dspplug/pkg/host"
	"github.com/justyntemme/dspplug/pkg/plugin"
)

// RenderCmd runs a WAV file, or nothing for generators, through a plugin
// and writes the result.
type RenderCmd struct {
	Plugin     string        `arg:"" help:"Plugin name"`
	Input      string        `arg:"" optional:"" type:"existingfile" help:"Input WAV file, omitted for generators"`
	Output     string        `short:"o" required:"" type:"path" help:"Output WAV file"`
	Set        []string      `short:"s" sep:"none" placeholder:"NAME=VALUE" help:"Set a parameter, repeatable"`
	Sidechain  string        `type:"existingfile" help:"WAV file fed to the plugin's sidechain"`
	Preset     string        `type:"existingfile" help:"Load parameter values from a preset"`
	SavePreset string        `type:"path" help:"Save the final parameter values as a preset"`
	Duration   time.Duration `default:"2s" help:"Length to generate when the plugin takes no input"`
	Tail       time.Duration `default:"2s" help:"Longest tail rendered after the input ends"`
	SampleRate int           `default:"48000" help:"Sample rate when there is no input file"`
	BlockSize  int           `default:"512" help:"Frames per processing block"`
	BitDepth   int           `default:"16" enum:"16,24,32" help:"Output bit depth"`
	Mixer      string        `default:"stereo" help:"Mixer speaker mode"`
}

// renderStats summarizes one render for the report.
type renderStats struct {
	Blocks   int
	Outcomes map[process.Outcome]int
	Elapsed  time.Duration
}

func (c *RenderCmd) Run(e *env) error {
	var (
		in, side *bus.Buffer
		rate     = c.SampleRate
	)
	if c.Input != "" {
		b, r, err := readWAV(c.Input)
		if err != nil {
			return err
		}
		in, rate = &b, r
	}
	if c.Sidechain != "" {
		b, r, err := readWAV(c.Sidechain)
		if err != nil {
			return err
		}
		if r != rate {
			return fmt.Errorf("sidechain runs at %d Hz, input at %d Hz", r, rate)
		}
		side = &b
	}

	mixer, err := bus.ParseSpeakerMode(c.Mixer)
	if err != nil {
		return err
	}
	sys, err := newSystem(e,
		host.WithSampleRate(rate),
		host.WithBlockSize(c.BlockSize),
		host.WithSpeakerModes(mixer, mixer),
		host.WithMetering(true))
	if err != nil {
		return err
	}
	defer sys.Close()

	inst, err := sys.Create(c.Plugin)
	if err != nil {
		return err
	}
	defer inst.Release()

	desc := inst.Descriptor()
	switch {
	case desc.NumInputs > 0 && in == nil:
		return fmt.Errorf("%s is an effect and needs an input file", desc.Name)
	case desc.NumInputs == 0 && in != nil:
		return fmt.Errorf("%s is a generator and takes no input file", desc.Name)
	case side != nil && desc.NumInputs < 2:
		return fmt.Errorf("%s has no sidechain input", desc.Name)
	}

	presets := state.NewManager(e.logger)
	if c.Preset != "" {
		if err := loadPreset(presets, c.Preset, inst); err != nil {
			return err
		}
	}
	for _, s := range c.Set {
		if err := applySetting(inst, s); err != nil {
			return err
		}
	}
	if side != nil {
		if err := enableSidechain(inst); err != nil {
			return err
		}
	}

	frames := framesIn(c.Duration, rate)
	tail := 0
	if in != nil {
		frames = in.Frames()
		if inst.Capabilities().Has(plugin.CapShouldIProcess) {
			tail = framesIn(c.Tail, rate)
		}
	}

	out, stats, err := renderBlocks(inst, in, side, frames, tail, c.BlockSize)
	if err != nil {
		return err
	}
	if err := writeWAV(c.Output, out, rate, c.BitDepth); err != nil {
		return err
	}
	if c.SavePreset != "" {
		if err := savePreset(presets, c.SavePreset, inst); err != nil {
			return err
		}
	}

	report(e.out, c, inst, sys, in, &out, rate, stats)
	return nil
}

func framesIn(d time.Duration, rate int) int {
	return int(int64(d) * int64(rate) / int64(time.Second))
}

// renderBlocks feeds frames frames of in, then at most tail frames of idle
// silence, through inst and collects the first output buffer. The tail
// stops as soon as the plugin bypasses an idle block.
func renderBlocks(inst *host.Instance, in, side *bus.Buffer, frames, tail, block int) (bus.Buffer, renderStats, error) {
	stats := renderStats{Outcomes: map[process.Outcome]int{}}
	var src *bus.Array
	if in != nil {
		// the layout has to hold the wider of the two inputs
		width := in.Channels
		if side != nil {
			width = max(width, side.Channels)
		}
		src = &bus.Array{
			SpeakerMode: bus.ModeForChannels(width),
			Buffers:     []bus.Buffer{{Channels: in.Channels}},
		}
		if side != nil {
			src.Buffers = append(src.Buffers, bus.Buffer{Channels: side.Channels})
		}
	}

	var out bus.Buffer
	dst := &bus.Array{}
	start := time.Now()
	for pos := 0; pos < frames+tail; pos += block {
		length := min(block, frames+tail-pos)
		idle := pos >= frames && (side == nil || pos >= side.Frames())
		if src != nil {
			window(&src.Buffers[0], in, pos, length)
			if side != nil {
				window(&src.Buffers[1], side, pos, length)
			}
		}

		outcome, err := inst.Process(length, src, dst, idle)
		if err != nil {
			return out, stats, fmt.Errorf("block at frame %d: %w", pos, err)
		}
		stats.Blocks++
		stats.Outcomes[outcome]++
		if dst.Len() == 0 {
			return out, stats, fmt.Errorf("%s produced no output buffer: %w", inst.PluginName(), abi.ErrFormat)
		}

		b := &dst.Buffers[0]
		switch {
		case out.Channels == 0:
			out.Channels = b.Channels
		case out.Channels != b.Channels:
			return out, stats, fmt.Errorf("output changed from %d to %d channels at frame %d: %w",
				out.Channels, b.Channels, pos, abi.ErrFormatChanged)
		}
		if idle && outcome == process.Bypassed {
			break
		}
		out.Data = append(out.Data, b.Data[:length*b.Channels]...)
	}
	stats.Elapsed = time.Since(start)
	return out, stats, nil
}

// window copies length frames of src from frame pos into b, padding with
// silence past the end.
func window(b *bus.Buffer, src *bus.Buffer, pos, length int) {
	n := length * b.Channels
	if cap(b.Data) < n {
		b.Data = make([]float32, n)
	}
	b.Data = b.Data[:n]
	copied := 0
	if from := pos * src.Channels; from < len(src.Data) {
		copied = copy(b.Data, src.Data[from:])
	}
	clear(b.Data[copied:])
}

func enableSidechain(inst *host.Instance) error {
	index, ok := inst.Parameters().Reserved(abi.DataSidechain)
	if !ok {
		return fmt.Errorf("%s has no sidechain parameter", inst.PluginName())
	}
	data, err := abi.Encode(nil, &abi.Sidechain{Enable: 1})
	if err != nil {
		return err
	}
	return inst.SetParameterData(index, data)
}

func readWAV(path string) (bus.Buffer, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return bus.Buffer{}, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return bus.Buffer{}, 0, fmt.Errorf("%s: not a valid WAV file", path)
	}
	if dec.WavAudioFormat != 1 {
		return bus.Buffer{}, 0, fmt.Errorf("%s: only PCM WAV files are supported: %w", path, abi.ErrFormat)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return bus.Buffer{}, 0, fmt.Errorf("%s: %w", path, err)
	}
	pcm.SourceBitDepth = int(dec.BitDepth)
	b, err := bus.FromIntBuffer(pcm)
	if err != nil {
		return bus.Buffer{}, 0, fmt.Errorf("%s: %w", path, err)
	}
	return b, int(dec.SampleRate), nil
}

func writeWAV(path string, b bus.Buffer, rate, depth int) error {
	if b.Channels == 0 {
		return errors.New("nothing rendered")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := wav.NewEncoder(f, rate, depth, b.Channels, 1)
	if err := enc.Write(b.ToIntBuffer(rate, depth)); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func loadPreset(m *state.Manager, path string, inst *host.Instance) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return m.Load(f, inst)
}

func savePreset(m *state.Manager, path string, inst *host.Instance) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := m.Save(f, inst); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func report(w io.Writer, c *RenderCmd, inst *host.Instance, sys *host.System,
	in, out *bus.Buffer, rate int, stats renderStats) {
	fmt.Fprintf(w, "%s %s\n", TitleStyle.Render(inst.PluginName()), KeyStyle.Render("→ "+c.Output))

	fmt.Fprintln(w, SectionStyle.Render("Parameters"))
	fmt.Fprint(w, renderTable([]string{"Name", "Value"}, describeValues(inst)))

	analyzer := debug.NewAudioAnalyzer()
	var issues []string
	var rows [][]string
	levels := func(name string, b *bus.Buffer) {
		for ch, r := range analyzer.AnalyzeInterleaved(b.Data, b.Channels) {
			label := fmt.Sprintf("%s %d", name, ch)
			rows = append(rows, []string{
				label,
				dbfs(r.Peak),
				dbfs(r.RMS),
				strconv.FormatFloat(float64(r.DC), 'f', 4, 32),
			})
			issues = append(issues, analyzer.Issues(r, label)...)
		}
	}
	if in != nil {
		levels("in", in)
	}
	levels("out", out)
	fmt.Fprintln(w, SectionStyle.Render("Levels"))
	fmt.Fprint(w, renderTable([]string{"Channel", "Peak", "RMS", "DC"}, rows))
	for _, issue := range issues {
		fmt.Fprintln(w, WarnStyle.Render(issue))
	}

	var peak int64
	for _, u := range sys.Memory() {
		peak += u.Peak
	}
	seconds := float64(out.Frames()) / float64(rate)
	fmt.Fprintln(w, SectionStyle.Render("Run"))
	fmt.Fprint(w, renderTable([]string{"", ""}, [][]string{
		{KeyStyle.Render("length"), ValueStyle.Render(fmt.Sprintf("%.3f s, %d frames", seconds, out.Frames()))},
		{KeyStyle.Render("blocks"), ValueStyle.Render(fmt.Sprintf("%d (%d processed, %d pass-through, %d bypassed, %d silenced)",
			stats.Blocks, stats.Outcomes[process.Processed], stats.Outcomes[process.PassThrough],
			stats.Outcomes[process.Bypassed], stats.Outcomes[process.Silenced]))},
		{KeyStyle.Render("speed"), ValueStyle.Render(fmt.Sprintf("%.1fx real time", seconds/max(stats.Elapsed.Seconds(), 1e-9)))},
		{KeyStyle.Render("cpu"), ValueStyle.Render(fmt.Sprintf("%.2f%%", inst.CPULoad()))},
		{KeyStyle.Render("memory peak"), ValueStyle.Render(fmt.Sprintf("%d bytes", peak))},
	}))
}

func dbfs(v float32) string {
	return param.DecibelFormatter(float64(gain.LinearToDb32(v)))
}
