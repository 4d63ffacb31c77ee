package cmd

import (
	"io"
	"log/slog"

	"github.com/ch643/usbfsd/internal/config"
)

// DumpConfig prints the effective identity settings as a configuration
// file that the simulator loads back.
type DumpConfig struct {
	Format string `help:"Output format" enum:"yaml,json,toml" default:"yaml"`
}

// Run is called by Kong when the dump-config command is executed.
func (d *DumpConfig) Run(logger *slog.Logger, id *config.Identity, out io.Writer) error {
	if err := id.Validate(); err != nil {
		return err
	}
	logger.Debug("dumping configuration", "format", d.Format)
	return config.Dump(out, d.Format, id)
}
