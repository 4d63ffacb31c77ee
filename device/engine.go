package device

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ch643/usbfsd/device/hal"
	"github.com/ch643/usbfsd/pkg"
)

// Signalling times.
const (
	deInitSettle  = 10 * time.Microsecond
	resumeSignal  = 8 * time.Millisecond
	resumeRecover = 1 * time.Millisecond
)

// Engine is the control-transfer engine of one USBFS device controller.
//
// HandleInterrupt must be wired to the controller interrupt and is the only
// writer of the transfer state. Upload, Busy, ResumeOut, State and Setup may
// be called from other goroutines.
type Engine struct {
	ctrl      hal.Controller
	desc      *Descriptors
	class     ClassHandler
	vendor    VendorHandler
	sleepHook func()

	ep0  [MaxPacketSize0]byte
	eps  [NumEndpoints]endpoint
	busy [NumEndpoints]atomic.Bool
	held [NumEndpoints]atomic.Bool

	cursor      Cursor
	pendingAddr uint8
	addrPending bool

	// mu guards state and setup against readers outside the interrupt.
	mu    sync.Mutex
	state State
	setup SetupPacket
}

// NewEngine returns an engine serving desc through ctrl. The endpoint table
// is derived from the endpoint descriptors of the configuration.
func NewEngine(ctrl hal.Controller, desc *Descriptors, opts ...Option) *Engine {
	e := &Engine{ctrl: ctrl, desc: desc}
	for _, opt := range opts {
		opt(e)
	}
	if err := desc.Validate(); err != nil {
		pkg.LogWarn(pkg.ComponentEngine, "descriptor set invalid", "error", err)
	}
	e.configureEndpoints()
	return e
}

// Init runs the controller power-on sequence and enables the interrupt.
func (e *Engine) Init() {
	e.ctrl.Write(hal.BaseCtrl, 0)
	e.initEndpoints()
	e.ctrl.Write(hal.DevAddr, 0)
	e.ctrl.Write(hal.BaseCtrl, hal.UCDevPuEn|hal.UCIntBusy|hal.UCDMAEn)
	e.ctrl.Write(hal.IntFg, 0xFF)
	e.ctrl.Write(hal.UDevCtrl, hal.UDPdDis|hal.UDPortEn)
	e.ctrl.Write(hal.IntEn, hal.UISuspend|hal.UIBusRst|hal.UITransfer)
	e.ctrl.SetIRQ(true)
	pkg.LogInfo(pkg.ComponentEngine, "controller initialized")
}

// DeInit resets the serial interface engine, disables the controller and
// masks its interrupt.
func (e *Engine) DeInit() {
	e.ctrl.Write(hal.BaseCtrl, hal.UCResetSIE|hal.UCClrAll)
	e.ctrl.Delay(deInitSettle)
	e.ctrl.Write(hal.BaseCtrl, 0)
	e.ctrl.SetIRQ(false)
	pkg.LogInfo(pkg.ComponentEngine, "controller disabled")
}

// State returns a copy of the device state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Setup returns the most recent SETUP packet.
func (e *Engine) Setup() SetupPacket {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setup
}

// Descriptors returns the descriptor set the engine serves.
func (e *Engine) Descriptors() *Descriptors { return e.desc }

// HandleInterrupt services one controller interrupt. It never blocks.
func (e *Engine) HandleInterrupt() {
	flags := e.ctrl.Read(hal.IntFg)
	st := e.ctrl.Read(hal.IntSt)

	switch {
	case flags&hal.UITransfer != 0:
		e.transfer(st)
		e.ctrl.Write(hal.IntFg, hal.UITransfer)
	case flags&hal.UIBusRst != 0:
		e.busReset()
		e.ctrl.Write(hal.IntFg, hal.UIBusRst)
	case flags&hal.UISuspend != 0:
		e.ctrl.Write(hal.IntFg, hal.UISuspend)
		e.suspend()
	default:
		e.ctrl.Write(hal.IntFg, flags)
	}
}

func (e *Engine) transfer(st uint32) {
	ep := uint8(st & hal.UISEndpMask)
	if ep >= NumEndpoints {
		pkg.LogDebug(pkg.ComponentEndpoint, "token for missing endpoint", "ep", ep)
		return
	}
	switch st & hal.UISTokenMask {
	case hal.UISTokenSet:
		e.handleSetup()
	case hal.UISTokenIn:
		if ep == 0 {
			e.controlIn()
		} else {
			e.dataIn(ep)
		}
	case hal.UISTokenOut:
		if ep == 0 {
			e.controlOut(st)
		} else {
			e.dataOut(ep, st)
		}
	}
}

// setTx replaces the transmit half of an endpoint control register.
func (e *Engine) setTx(ep uint8, bits uint32) {
	hal.Modify(e.ctrl, hal.EndpointCtrl(ep), hal.UEPTResMask|hal.UEPTTog, bits)
}

// setRx replaces the receive half of an endpoint control register.
func (e *Engine) setRx(ep uint8, bits uint32) {
	hal.Modify(e.ctrl, hal.EndpointCtrl(ep), hal.UEPRResMask|hal.UEPRTog, bits)
}

func (e *Engine) stall() {
	e.setTx(0, hal.UEPTTog|hal.UEPTResStall)
	e.setRx(0, hal.UEPRTog|hal.UEPRResStall)
	e.cursor.Reset()
	e.addrPending = false
}

func (e *Engine) handleSetup() {
	e.setTx(0, hal.UEPTTog|hal.UEPTResNAK)
	e.setRx(0, hal.UEPRTog|hal.UEPRResNAK)

	var setup SetupPacket
	if err := ParseSetupPacket(e.ep0[:], &setup); err != nil {
		pkg.LogDebug(pkg.ComponentEngine, "stall", "error", err)
		e.stall()
		return
	}
	e.mu.Lock()
	e.setup = setup
	e.mu.Unlock()
	e.cursor.Reset()
	e.addrPending = false

	if pkg.Enabled(slog.LevelDebug) {
		pkg.LogDebug(pkg.ComponentEngine, "setup", "request", setup.String())
	}

	data, err := e.resolve(&setup)
	if err != nil {
		if pkg.Enabled(slog.LevelDebug) {
			pkg.LogDebug(pkg.ComponentEngine, "stall", "request", setup.String(), "error", err)
		}
		e.stall()
		return
	}

	switch {
	case setup.IsDeviceToHost():
		e.cursor.Load(data, setup.Length)
		n := e.cursor.Next(e.ep0[:])
		e.ctrl.Write(hal.EndpointTxLen(0), uint32(n))
		e.setTx(0, hal.UEPTTog|hal.UEPTResACK)
	case setup.Length == 0:
		e.ctrl.Write(hal.EndpointTxLen(0), 0)
		e.setTx(0, hal.UEPTTog|hal.UEPTResACK)
	default:
		e.cursor.Expect(setup.Length)
		e.setRx(0, hal.UEPRTog|hal.UEPRResACK)
	}
}

// resolve classifies a request and returns its IN data stage.
func (e *Engine) resolve(setup *SetupPacket) ([]byte, error) {
	switch setup.Type() {
	case RequestTypeStandard:
		return e.standard(setup)
	case RequestTypeClass:
		if e.class == nil {
			return nil, pkg.ErrNotSupported
		}
		return e.class.Setup(setup)
	case RequestTypeVendor:
		if e.vendor == nil {
			return nil, nil
		}
		return e.vendor.Vendor(setup)
	default:
		return nil, pkg.ErrInvalidRequest
	}
}

func (e *Engine) controlIn() {
	if e.cursor.Remaining() == 0 {
		e.setRx(0, hal.UEPRTog|hal.UEPRResACK)
	}
	if e.cursor.Active() {
		n := e.cursor.Next(e.ep0[:])
		e.ctrl.Write(hal.EndpointTxLen(0), uint32(n))
		hal.Toggle(e.ctrl, hal.EndpointCtrl(0), hal.UEPTTog)
		if n == 0 {
			e.cursor.Reset()
		}
	}
	if e.addrPending {
		e.addrPending = false
		hal.Modify(e.ctrl, hal.DevAddr, hal.UDAAddress, uint32(e.pendingAddr))
		e.mu.Lock()
		e.state.Address = e.pendingAddr
		e.mu.Unlock()
		pkg.LogDebug(pkg.ComponentEngine, "address assigned", "address", e.pendingAddr)
	}
}

func (e *Engine) controlOut(st uint32) {
	if st&hal.UISTogOK == 0 {
		return
	}
	e.mu.Lock()
	setup := e.setup
	e.mu.Unlock()

	rx := int(e.ctrl.Read(hal.RxLen))
	if !setup.IsDeviceToHost() && e.cursor.Remaining() > 0 && rx > 0 {
		n := min(rx, int(e.cursor.Remaining()), len(e.ep0))
		if err := e.deliver(&setup, e.ep0[:n]); err != nil {
			if pkg.Enabled(slog.LevelDebug) {
				pkg.LogDebug(pkg.ComponentEngine, "stall", "request", setup.String(), "error", err)
			}
			e.stall()
			return
		}
		e.cursor.Consume(n)
		if e.cursor.Remaining() > 0 {
			hal.Toggle(e.ctrl, hal.EndpointCtrl(0), hal.UEPRTog)
		}
	}
	if e.cursor.Remaining() == 0 {
		e.ctrl.Write(hal.EndpointTxLen(0), 0)
		e.setTx(0, hal.UEPTTog|hal.UEPTResACK)
	}
}

// deliver routes an OUT data stage packet to the owner of the request.
func (e *Engine) deliver(setup *SetupPacket, data []byte) error {
	switch setup.Type() {
	case RequestTypeClass:
		if e.class == nil {
			return pkg.ErrNotSupported
		}
		return e.class.ControlOut(setup, data)
	case RequestTypeVendor:
		if e.vendor == nil {
			return nil
		}
		return e.vendor.VendorOut(setup, data)
	default:
		return nil
	}
}

func (e *Engine) busReset() {
	e.mu.Lock()
	e.state = State{}
	e.setup = SetupPacket{}
	e.mu.Unlock()
	e.cursor.Reset()
	e.addrPending = false

	e.ctrl.Write(hal.DevAddr, 0)
	e.initEndpoints()
	if e.class != nil {
		e.class.Reset()
	}
	pkg.LogDebug(pkg.ComponentEngine, "bus reset")
}

func (e *Engine) suspend() {
	e.mu.Lock()
	suspended := e.ctrl.Read(hal.MisSt)&hal.UMSSuspend != 0
	if suspended {
		e.state.Sleep |= SleepSuspended
	} else {
		e.state.Sleep &^= SleepSuspended
	}
	sleep := e.state.Sleep == SleepSuspended|SleepRemoteWakeup
	e.mu.Unlock()

	pkg.LogDebug(pkg.ComponentEngine, "suspend", "suspended", suspended)
	if sleep && e.sleepHook != nil {
		e.sleepHook()
	}
}

// SendResume drives remote wakeup signalling on the bus. The host must have
// armed remote wakeup.
func (e *Engine) SendResume() error {
	if !e.State().RemoteWakeupArmed() {
		return fmt.Errorf("remote wakeup not armed: %w", pkg.ErrInvalidState)
	}
	e.ctrl.SetPullUp(hal.PullDP, false)
	e.ctrl.SetPullUp(hal.PullDM, true)
	hal.Set(e.ctrl, hal.UDevCtrl, hal.UDLowSpeed)
	e.ctrl.Delay(resumeSignal)

	hal.Clear(e.ctrl, hal.UDevCtrl, hal.UDLowSpeed)
	e.ctrl.SetPullUp(hal.PullDP, true)
	e.ctrl.SetPullUp(hal.PullDM, false)
	e.ctrl.Delay(resumeRecover)
	pkg.LogDebug(pkg.ComponentEngine, "resume signalled")
	return nil
}
