// Command usbfsd-sim runs the CH643 USBFS device functions against a
// simulated controller and host.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"

	"github.com/ch643/usbfsd/internal/cmd"
	"github.com/ch643/usbfsd/internal/config"
	"github.com/ch643/usbfsd/pkg"
)

// CLI is the usbfsd-sim command line.
type CLI struct {
	Config   string          `help:"Configuration file (JSON, YAML or TOML)" env:"USBFSD_CONFIG" type:"path"`
	Log      config.Log      `embed:"" prefix:"log."`
	Identity config.Identity `embed:"" group:"Identity"`

	Enumerate  cmd.Enumerate  `cmd:"" help:"Enumerate a device function and print its descriptors"`
	Replay     cmd.Replay     `cmd:"" help:"Replay a YAML transaction script"`
	Type       cmd.Type       `cmd:"" help:"Type text through the HID keyboard"`
	Serial     cmd.Serial     `cmd:"" help:"Loop text through the CDC-ACM port"`
	DumpConfig cmd.DumpConfig `cmd:"" name:"dump-config" help:"Print the effective identity as a configuration file"`
}

// Validate is called by kong after parsing.
func (c *CLI) Validate() error {
	return c.Identity.Validate()
}

func main() {
	var cli CLI
	opts := []kong.Option{
		kong.Name(config.Name + "-sim"),
		kong.Description(Description()),
		kong.UsageOnError(),
	}
	// Flags and env take precedence over the configuration files.
	opts = append(opts, config.Options(config.FindUserConfig(os.Args[1:]))...)
	ctx := kong.Parse(&cli, opts...)

	logger, closeFiles, err := pkg.SetupLogger(cli.Log.Level, cli.Log.File, cli.Log.FileFormat())
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to setup logger:", err)
		os.Exit(2)
	}
	defer func() {
		for _, c := range closeFiles {
			_ = c.Close()
		}
	}()

	ctx.Bind(logger.With("component", pkg.ComponentCLI), &cli.Identity)
	ctx.BindTo(os.Stdout, (*io.Writer)(nil))

	err = ctx.Run()
	ctx.FatalIfErrorf(err)
}
