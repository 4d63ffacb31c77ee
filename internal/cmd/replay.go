package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ch643/usbfsd/device/hal/sim"
	"github.com/ch643/usbfsd/internal/config"
	"github.com/ch643/usbfsd/pkg"
)

// Replay runs a YAML transaction script against a simulated device.
type Replay struct {
	Script string `arg:"" optional:"" help:"Script file, or - for stdin" default:"-"`
	Trace  bool   `help:"Print every bus transaction" short:"t"`
}

// Run is called by Kong when the replay command is executed.
func (r *Replay) Run(logger *slog.Logger, id *config.Identity, out io.Writer) error {
	var in io.Reader = os.Stdin
	if r.Script != "-" {
		f, err := os.Open(r.Script)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	script, err := ParseScript(in)
	if err != nil {
		return err
	}
	logger.Debug("script loaded", "function", script.Function, "steps", len(script.Steps))

	b, err := newBench(script.Function, id)
	if err != nil {
		return err
	}
	defer b.close()
	if r.Trace {
		b.host.OnTransaction = func(t sim.Transaction) { fmt.Fprintln(out, t) }
	}

	for i := range script.Steps {
		s := &script.Steps[i]
		got, err := b.run(s, script.Address)
		if err := s.check(got, err); err != nil {
			logger.Error("replay failed", "step", i+1, "op", s.Op, "error", err)
			return fmt.Errorf("%s: %w", s.label(i), err)
		}
		logger.Debug("step passed", "step", i+1, "op", s.Op, "len", len(got))
	}
	fmt.Fprintf(out, "%d steps passed\n", len(script.Steps))
	return nil
}

// run performs one step and returns the data the host received.
func (b *bench) run(s *Step, addr uint8) ([]byte, error) {
	switch s.Op {
	case OpControlIn:
		return b.host.ControlIn(s.Setup.Packet().Bytes())
	case OpControlOut:
		return nil, b.host.ControlOut(s.Setup.Packet().Bytes(), s.payload())
	case OpSetup:
		return nil, b.host.Setup(s.Setup.Packet().Bytes())
	case OpIn:
		data, _, err := b.host.In(s.EP)
		return data, err
	case OpOut:
		if s.EP == 0 || s.DATA1 != nil {
			data1 := true
			if s.DATA1 != nil {
				data1 = *s.DATA1
			}
			return nil, b.host.Out(s.EP, s.payload(), data1)
		}
		return nil, b.out(s.EP, s.payload())
	case OpReset:
		b.busReset()
	case OpSuspend:
		b.host.Suspend()
	case OpResume:
		b.host.Resume()
	case OpSOF:
		b.host.SOF()
	case OpConfigure:
		return nil, b.configure(addr)
	}
	return nil, nil
}

// check compares a step's outcome with what the step expects.
func (s *Step) check(got []byte, err error) error {
	switch s.Error {
	case "":
		if err != nil {
			return err
		}
	case "any":
		if err == nil {
			return errors.New("expected an error, device accepted")
		}
		return nil
	case "stall":
		if !errors.Is(err, pkg.ErrStall) {
			return fmt.Errorf("expected STALL, got %v", handshake(err))
		}
		return nil
	case "nak":
		if !errors.Is(err, pkg.ErrNAK) {
			return fmt.Errorf("expected NAK, got %v", handshake(err))
		}
		return nil
	}
	if s.Expect != nil && !bytes.Equal(got, *s.Expect) {
		return fmt.Errorf("data mismatch: got % x, want % x", got, []byte(*s.Expect))
	}
	return nil
}

func handshake(err error) string {
	if err == nil {
		return "ACK"
	}
	return err.Error()
}
