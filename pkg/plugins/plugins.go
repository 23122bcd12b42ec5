// Package plugins collects the reference plugins.
package plugins

import (
	"github.com/justyntemme/dspplug/pkg/host"
	"github.com/justyntemme/dspplug/pkg/plugin"
	"github.com/justyntemme/dspplug/pkg/plugins/ducker"
	"github.com/justyntemme/dspplug/pkg/plugins/echo"
	"github.com/justyntemme/dspplug/pkg/plugins/gain"
	"github.com/justyntemme/dspplug/pkg/plugins/spatial"
	"github.com/justyntemme/dspplug/pkg/plugins/spectrum"
	"github.com/justyntemme/dspplug/pkg/plugins/tone"
)

// All returns fresh descriptors for every reference plugin.
func All() []*plugin.Descriptor {
	return []*plugin.Descriptor{
		gain.Descriptor(),
		echo.Descriptor(),
		spectrum.Descriptor(),
		tone.Descriptor(),
		spatial.Descriptor(),
		ducker.Descriptor(),
	}
}

// Register adds every reference plugin to sys.
func Register(sys *host.System) error {
	for _, d := range All() {
		if err := sys.Register(d); err != nil {
			return err
		}
	}
	return nil
}
