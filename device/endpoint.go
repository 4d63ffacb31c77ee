package device

import (
	"fmt"

	"github.com/ch643/usbfsd/device/hal"
	"github.com/ch643/usbfsd/pkg"
)

// Endpoint transfer types (USB 2.0 Spec Table 9-13).
const (
	EndpointTypeControl     = 0x00 // Control transfer
	EndpointTypeIsochronous = 0x01 // Isochronous transfer
	EndpointTypeBulk        = 0x02 // Bulk transfer
	EndpointTypeInterrupt   = 0x03 // Interrupt transfer
)

// Endpoint directions.
const (
	EndpointDirectionOut = 0x00 // Host to device
	EndpointDirectionIn  = 0x80 // Device to host
)

// endpoint is the engine's view of one data endpoint. A number may carry an
// IN and an OUT endpoint at once; the controller then splits its buffer.
type endpoint struct {
	in, out bool
	inSize  uint16
	outSize uint16
	buf     []byte
}

// txBuf returns the region the controller transmits IN data from.
func (ep *endpoint) txBuf() []byte {
	if ep.in && ep.out {
		return ep.buf[MaxPacketSize:]
	}
	return ep.buf
}

// rxBuf returns the region the controller writes OUT data to.
func (ep *endpoint) rxBuf() []byte {
	if ep.in && ep.out {
		return ep.buf[:MaxPacketSize]
	}
	return ep.buf
}

// configureEndpoints builds the endpoint table from the configuration.
func (e *Engine) configureEndpoints() {
	for _, d := range e.desc.Endpoints() {
		n := d.EndpointAddress & 0x0F
		if n == 0 || n >= NumEndpoints {
			pkg.LogWarn(pkg.ComponentEndpoint, "endpoint not available", "address", fmt.Sprintf("0x%02X", d.EndpointAddress))
			continue
		}
		size := min(d.MaxPacketSize&0x07FF, MaxPacketSize)
		ep := &e.eps[n]
		if d.EndpointAddress&EndpointDirectionIn != 0 {
			ep.in, ep.inSize = true, size
		} else {
			ep.out, ep.outSize = true, size
		}
	}
	for n := range e.eps {
		ep := &e.eps[n]
		switch {
		case ep.in && ep.out:
			ep.buf = make([]byte, 2*MaxPacketSize)
		case ep.in || ep.out:
			ep.buf = make([]byte, MaxPacketSize)
		}
	}
}

// initEndpoints programs the power-on endpoint profile: mode bits, DMA
// buffers, EP0 receiving and NAKing IN, IN endpoints NAKing with nothing
// staged, OUT endpoints receiving, toggles at DATA0 and busy flags clear.
func (e *Engine) initEndpoints() {
	mode := map[hal.Register]uint32{
		hal.UEP41Mod: 0,
		hal.UEP23Mod: 0,
		hal.UEP56Mod: 0,
		hal.UEP7Mod:  0,
	}
	for n := uint8(1); n < NumEndpoints; n++ {
		ep := &e.eps[n]
		if reg, bits, ok := hal.ModeBits(n, ep.in, ep.out); ok {
			mode[reg] |= bits
		}
	}
	for _, reg := range []hal.Register{hal.UEP41Mod, hal.UEP23Mod, hal.UEP56Mod, hal.UEP7Mod} {
		e.ctrl.Write(reg, mode[reg])
	}

	e.ctrl.BindBuffer(0, e.ep0[:])
	e.ctrl.Write(hal.EndpointCtrl(0), hal.UEPRResACK|hal.UEPTResNAK)

	for n := uint8(1); n < NumEndpoints; n++ {
		ep := &e.eps[n]
		e.busy[n].Store(false)
		e.held[n].Store(false)
		if !ep.in && !ep.out {
			continue
		}
		e.ctrl.BindBuffer(n, ep.buf)
		var ctrl uint32
		if ep.in {
			e.ctrl.Write(hal.EndpointTxLen(n), 0)
			ctrl |= hal.UEPTResNAK
		}
		if ep.out {
			ctrl |= hal.UEPRResACK
		}
		e.ctrl.Write(hal.EndpointCtrl(n), ctrl)
	}
}

// Upload stages data on IN endpoint ep and hands it to the controller. It
// fails with pkg.ErrNotReady while the previous upload is still in flight,
// leaving the buffer and length register untouched.
func (e *Engine) Upload(ep uint8, data []byte) error {
	if ep == 0 || ep >= NumEndpoints || !e.eps[ep].in {
		return pkg.ErrInvalidEndpoint
	}
	cfg := &e.eps[ep]
	if len(data) > int(cfg.inSize) {
		return pkg.ErrBufferTooSmall
	}
	if !e.busy[ep].CompareAndSwap(false, true) {
		return pkg.ErrNotReady
	}
	copy(cfg.txBuf(), data)
	e.ctrl.Write(hal.EndpointTxLen(ep), uint32(len(data)))
	hal.SetTxResponse(e.ctrl, ep, hal.UEPTResACK)
	return nil
}

// Busy reports whether an upload on ep is waiting for the host.
func (e *Engine) Busy(ep uint8) bool {
	if ep >= NumEndpoints {
		return false
	}
	return e.busy[ep].Load()
}

// ResumeOut lifts back-pressure on OUT endpoint ep.
func (e *Engine) ResumeOut(ep uint8) error {
	if ep == 0 || ep >= NumEndpoints || !e.eps[ep].out {
		return pkg.ErrInvalidEndpoint
	}
	if e.held[ep].CompareAndSwap(true, false) {
		hal.SetRxResponse(e.ctrl, ep, hal.UEPRResACK)
		pkg.LogDebug(pkg.ComponentEndpoint, "out resumed", "ep", ep)
	}
	return nil
}

// dataIn completes an upload: NAK until the next one, flip the toggle and
// release the buffer.
func (e *Engine) dataIn(ep uint8) {
	hal.Toggle(e.ctrl, hal.EndpointCtrl(ep), hal.UEPTTog)
	hal.SetTxResponse(e.ctrl, ep, hal.UEPTResNAK)
	e.busy[ep].Store(false)
	if h, ok := e.class.(EndpointInHandler); ok {
		h.EndpointIn(ep)
	}
}

// dataOut accepts a data endpoint packet with a matching toggle.
func (e *Engine) dataOut(ep uint8, st uint32) {
	if st&hal.UISTogOK == 0 || !e.eps[ep].out {
		return
	}
	hal.Toggle(e.ctrl, hal.EndpointCtrl(ep), hal.UEPRTog)
	n := min(int(e.ctrl.Read(hal.RxLen)), int(e.eps[ep].outSize))
	h, ok := e.class.(EndpointOutHandler)
	if !ok {
		return
	}
	if !h.EndpointOut(ep, e.eps[ep].rxBuf()[:n]) {
		e.held[ep].Store(true)
		hal.SetRxResponse(e.ctrl, ep, hal.UEPRResNAK)
		pkg.LogDebug(pkg.ComponentEndpoint, "out held", "ep", ep)
	}
}

// endpointFor resolves a wIndex endpoint address to a configured direction.
func (e *Engine) endpointFor(addr uint8) (n uint8, in bool, err error) {
	n = addr & 0x0F
	in = addr&EndpointDirectionIn != 0
	if n == 0 || n >= NumEndpoints {
		return 0, false, pkg.ErrInvalidEndpoint
	}
	if in && !e.eps[n].in || !in && !e.eps[n].out {
		return 0, false, pkg.ErrInvalidEndpoint
	}
	return n, in, nil
}

// clearHalt resets a data endpoint after CLEAR_FEATURE(ENDPOINT_HALT): the
// toggle returns to DATA0, IN NAKs and OUT receives unless held.
func (e *Engine) clearHalt(addr uint8) error {
	n, in, err := e.endpointFor(addr)
	if err != nil {
		return err
	}
	if in {
		e.setTx(n, hal.UEPTResNAK)
		e.busy[n].Store(false)
		return nil
	}
	if e.held[n].Load() {
		e.setRx(n, hal.UEPRResNAK)
	} else {
		e.setRx(n, hal.UEPRResACK)
	}
	return nil
}

// setHalt stalls one direction of a data endpoint.
func (e *Engine) setHalt(addr uint8) error {
	n, in, err := e.endpointFor(addr)
	if err != nil {
		return err
	}
	if in {
		hal.SetTxResponse(e.ctrl, n, hal.UEPTResStall)
	} else {
		hal.SetRxResponse(e.ctrl, n, hal.UEPRResStall)
	}
	return nil
}

// halted reports whether a data endpoint direction is stalled.
func (e *Engine) halted(addr uint8) (bool, error) {
	n, in, err := e.endpointFor(addr)
	if err != nil {
		return false, err
	}
	if in {
		return hal.TxResponse(e.ctrl, n) == hal.UEPTResStall, nil
	}
	return hal.RxResponse(e.ctrl, n) == hal.UEPRResStall, nil
}

// TransferTypeName returns a human-readable transfer type name.
func TransferTypeName(t uint8) string {
	switch t & 0x03 {
	case EndpointTypeControl:
		return "Control"
	case EndpointTypeIsochronous:
		return "Isochronous"
	case EndpointTypeBulk:
		return "Bulk"
	default:
		return "Interrupt"
	}
}

// DirectionName returns a human-readable direction name.
func DirectionName(addr uint8) string {
	if addr&EndpointDirectionIn != 0 {
		return "IN"
	}
	return "OUT"
}
