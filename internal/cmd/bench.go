// Package cmd implements the usbfsd-sim subcommands. Each command drives the
// device engine through the simulated controller and host.
package cmd

import (
	"fmt"

	"github.com/ch643/usbfsd/device"
	"github.com/ch643/usbfsd/device/class/cdc"
	"github.com/ch643/usbfsd/device/class/hid"
	"github.com/ch643/usbfsd/device/hal/sim"
	"github.com/ch643/usbfsd/internal/config"
	"github.com/ch643/usbfsd/pkg"
)

// Device functions the simulator can run.
const (
	FunctionHID = "hid"
	FunctionCDC = "cdc"
)

// bench is an engine wired to a simulated controller and host.
type bench struct {
	function string
	identity device.Identity
	desc     *device.Descriptors

	ctrl *sim.Controller
	host *sim.Host
	eng  *device.Engine

	hid *hid.Handler
	acm *cdc.ACM

	toggles map[uint8]bool // next OUT PID per data endpoint
}

// newBench builds the device function with id applied over its default
// identity, initializes the engine and resets the bus.
func newBench(function string, id *config.Identity) (*bench, error) {
	b := &bench{function: function, ctrl: sim.New(), toggles: make(map[uint8]bool)}
	if id == nil {
		id = &config.Identity{}
	}

	var class device.ClassHandler
	switch function {
	case FunctionHID:
		ident, err := id.Apply(hid.DefaultIdentity)
		if err != nil {
			return nil, err
		}
		b.identity, b.desc = ident, hid.Descriptors(ident)
		b.hid = hid.New(b.desc)
		class = b.hid
	case FunctionCDC:
		ident, err := id.Apply(cdc.DefaultIdentity)
		if err != nil {
			return nil, err
		}
		b.identity, b.desc = ident, cdc.Descriptors(ident)
		b.acm = cdc.NewACM()
		class = b.acm
	default:
		return nil, fmt.Errorf("function %q: %w", function, pkg.ErrNotSupported)
	}
	if err := b.desc.Validate(); err != nil {
		return nil, fmt.Errorf("descriptors: %w", err)
	}

	b.eng = device.NewEngine(b.ctrl, b.desc, device.WithClass(class))
	switch {
	case b.hid != nil:
		b.hid.Bind(b.eng)
	case b.acm != nil:
		b.acm.Bind(b.eng)
	}
	b.ctrl.Attach(b.eng.HandleInterrupt)
	b.eng.Init()
	b.host = sim.NewHost(b.ctrl)
	b.busReset()
	return b, nil
}

func (b *bench) busReset() {
	b.host.BusReset()
	clear(b.toggles)
}

// configure assigns addr and selects configuration 1 the way a host does
// once it has read the device descriptor.
func (b *bench) configure(addr uint8) error {
	if err := b.host.ControlOut(device.SetAddress(addr).Bytes(), nil); err != nil {
		return fmt.Errorf("SET_ADDRESS: %w", err)
	}
	value := b.desc.ConfigurationValue()
	if err := b.host.ControlOut(device.SetConfiguration(value).Bytes(), nil); err != nil {
		return fmt.Errorf("SET_CONFIGURATION: %w", err)
	}
	return nil
}

// out sends one packet on a data OUT endpoint and advances its toggle when
// the device accepts it.
func (b *bench) out(ep uint8, data []byte) error {
	err := b.host.Out(ep, data, b.toggles[ep])
	if err == nil {
		b.toggles[ep] = !b.toggles[ep]
	}
	return err
}

// close tears the engine down.
func (b *bench) close() {
	b.eng.DeInit()
}
