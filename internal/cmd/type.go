package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/ch643/usbfsd/device/class/hid"
	"github.com/ch643/usbfsd/internal/config"
)

// Type enumerates the keyboard+mouse function and types text through the
// keyboard endpoint, polling each report the way a host would.
type Type struct {
	Text    string `arg:"" help:"Text to type"`
	Address uint8  `help:"Address assigned by SET_ADDRESS" default:"5"`
	Reports bool   `help:"Print every report the host received" short:"r"`
}

// Run is called by Kong when the type command is executed.
func (t *Type) Run(logger *slog.Logger, id *config.Identity, out io.Writer) error {
	b, err := newBench(FunctionHID, id)
	if err != nil {
		return err
	}
	defer b.close()
	if err := b.configure(t.Address); err != nil {
		return err
	}

	reports, skipped := hid.Type(t.Text)
	for i := range reports {
		if err := b.hid.SendKeyboard(&reports[i]); err != nil {
			return fmt.Errorf("report %d: %w", i, err)
		}
		data, data1, err := b.host.In(hid.EndpointKeyboard)
		if err != nil {
			return fmt.Errorf("poll report %d: %w", i, err)
		}
		if t.Reports {
			fmt.Fprintf(out, "DATA%d % x\n", btoi(data1), data)
		}
	}
	for _, r := range skipped {
		logger.Warn("no key for rune", "rune", string(r))
	}
	logger.Info("typed", "reports", len(reports), "skipped", len(skipped))
	fmt.Fprintf(out, "typed %d characters, skipped %d\n", len(reports)/2, len(skipped))
	return nil
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}
