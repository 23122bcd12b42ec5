// Command dsphost lists the reference plugins and renders WAV files
// through them.
package main

import (
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/justyntemme/dspplug/pkg/framework/debug"
)

var version = "0.1.0"

// CLI defines the command-line interface
type CLI struct {
	LogLevel string           `help:"Log level (debug, info, warn, error, off)" default:"warn" enum:"debug,info,warn,error,off"`
	LogFile  string           `type:"path" help:"Append log output to this file instead of stderr"`
	Version  kong.VersionFlag `short:"v" help:"Show version information"`

	List     ListCmd     `cmd:"" help:"List the built-in plugins"`
	Describe DescribeCmd `cmd:"" help:"Show a plugin's parameters"`
	Render   RenderCmd   `cmd:"" help:"Run a WAV file through a plugin"`
}

// env is what every command runs with.
type env struct {
	out    io.Writer
	logger *debug.Logger
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("dsphost"),
		kong.Description("DSP plugin host harness"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		kong.Help(StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	logger, err := newLogger(cli.LogLevel, cli.LogFile)
	ctx.FatalIfErrorf(err)

	if err := ctx.Run(&env{out: os.Stdout, logger: logger}); err != nil {
		PrintError(err.Error())
		os.Exit(1)
	}
}

// newLogger logs to stderr, or to path when one is given.
func newLogger(levelName, path string) (*debug.Logger, error) {
	level, err := debug.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	const flags = debug.FlagLevel | debug.FlagPrefix
	logger := debug.New(os.Stderr, "dsphost ", flags)
	if path != "" {
		if logger, err = debug.NewFileLogger(path, "dsphost ", flags); err != nil {
			return nil, err
		}
	}
	logger.SetLevel(level)
	return logger, nil
}
