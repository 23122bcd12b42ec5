package param

import "github.com/justyntemme/dspplug/pkg/abi"

// Common descriptor helpers

// Decibels creates a level parameter in dB
func Decibels(name string, min, max, def float32) *Builder {
	return Float(name, min, max, def).Label("dB")
}

// Frequency creates a frequency parameter with a host-chosen curve
func Frequency(name string, min, max, def float32) *Builder {
	return Float(name, min, max, def).Label("Hz").AutoMapping()
}

// Milliseconds creates a time parameter in ms
func Milliseconds(name string, min, max, def float32) *Builder {
	return Float(name, min, max, def).Label("ms")
}

// Percent creates a 0-100% parameter
func Percent(name string, def float32) *Builder {
	return Float(name, 0, 100, def).Label("%")
}

// Choice creates an int parameter with one name per option
func Choice(name string, def int32, options ...string) *Builder {
	return Int(name, 0, int32(len(options)-1), def).ValueNames(options...)
}

// Toggle creates an Off/On bool parameter
func Toggle(name string, def bool) *Builder {
	return Bool(name, def).ValueNames("Off", "On")
}

// OverallGain creates the read-only overall gain report
func OverallGain() *Builder {
	return Data("Overall Gain", abi.DataOverallGain).
		Description("Overall linear gain applied by the effect, for voice virtualization")
}

// Spectrum creates the read-only FFT snapshot parameter
func Spectrum() *Builder {
	return Data("Spectrum", abi.DataFFT).
		Description("Magnitude spectrum per channel")
}

// Position3D creates the single-listener 3D attributes parameter
func Position3D() *Builder {
	return Data("3D Attributes", abi.DataAttributes3D).
		Description("Sound position relative to the listener and in world space")
}

// Position3DMulti creates the multi-listener 3D attributes parameter
func Position3DMulti() *Builder {
	return Data("3D Multi", abi.DataAttributes3DMulti).
		Description("Sound position relative to each listener with blend weights")
}

// SidechainEnable creates the sidechain-enable flag parameter
func SidechainEnable() *Builder {
	return Data("Sidechain", abi.DataSidechain).
		Description("Enables mixing of sidechain inputs")
}
