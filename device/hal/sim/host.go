package sim

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ch643/usbfsd/device/hal"
	"github.com/ch643/usbfsd/pkg"
)

// maxPacket is the full-speed control and bulk packet size.
const maxPacket = 64

// ErrNoResponse is returned when a token is not addressed to the device or
// the port is disabled. A real host would see a timeout.
var ErrNoResponse = errors.New("sim: no response from device")

// Token identifies a host token.
type Token uint8

// Host tokens.
const (
	TokenSetup Token = iota
	TokenIn
	TokenOut
)

func (t Token) String() string {
	switch t {
	case TokenSetup:
		return "SETUP"
	case TokenIn:
		return "IN"
	default:
		return "OUT"
	}
}

// Transaction is one token exchange as seen on the bus.
type Transaction struct {
	Token    Token
	Address  uint8
	Endpoint uint8
	Data     []byte
	DATA1    bool
	Err      error // nil for ACK
}

func (t Transaction) String() string {
	hs := "ACK"
	switch {
	case errors.Is(t.Err, pkg.ErrNAK):
		hs = "NAK"
	case errors.Is(t.Err, pkg.ErrStall):
		hs = "STALL"
	case t.Err != nil:
		hs = t.Err.Error()
	}
	pid := "DATA0"
	if t.DATA1 {
		pid = "DATA1"
	}
	return fmt.Sprintf("%-5s %d.%d %s len=%d % X %s", t.Token, t.Address, t.Endpoint, pid, len(t.Data), t.Data, hs)
}

// Host drives a simulated controller from the bus side.
type Host struct {
	c       *Controller
	addr    uint8
	history []Transaction

	// OnTransaction, if set, observes every token exchange.
	OnTransaction func(Transaction)
}

// NewHost returns a host talking to address 0 of c.
func NewHost(c *Controller) *Host {
	return &Host{c: c}
}

// Address returns the device address tokens are sent to.
func (h *Host) Address() uint8 { return h.addr }

// SetAddress changes the device address tokens are sent to.
func (h *Host) SetAddress(addr uint8) { h.addr = addr & hal.UDAAddress }

// Transactions returns the exchanges recorded so far.
func (h *Host) Transactions() []Transaction {
	return append([]Transaction(nil), h.history...)
}

func (h *Host) record(t Transaction) {
	t.Address = h.addr
	h.history = append(h.history, t)
	if h.OnTransaction != nil {
		h.OnTransaction(t)
	}
}

// responds reports whether the device would answer a token.
func (h *Host) responds() bool {
	if h.c.Read(hal.UDevCtrl)&hal.UDPortEn == 0 {
		return false
	}
	return uint8(h.c.Read(hal.DevAddr)&hal.UDAAddress) == h.addr
}

// busy reports whether the controller auto-NAKs because an earlier transfer
// interrupt has not been acknowledged.
func (h *Host) busy() bool {
	return h.c.Read(hal.BaseCtrl)&hal.UCIntBusy != 0 && h.c.Pending()&hal.UITransfer != 0
}

// Setup sends a SETUP token and its 8-byte DATA0 payload to endpoint 0.
func (h *Host) Setup(packet [8]byte) error {
	t := Transaction{Token: TokenSetup, Data: append([]byte(nil), packet[:]...)}
	if !h.responds() {
		t.Err = ErrNoResponse
		h.record(t)
		return t.Err
	}
	out, _ := h.c.ioBuffers(0)
	if len(out) < len(packet) {
		t.Err = pkg.ErrBufferTooSmall
		h.record(t)
		return t.Err
	}
	h.c.mu.Lock()
	copy(out, packet[:])
	h.c.regs[hal.RxLen] = uint32(len(packet))
	h.c.regs[hal.IntSt] = hal.UISTokenSet | hal.UISTogOK
	h.c.mu.Unlock()
	h.record(t)

	h.c.raise(hal.UITransfer)
	return nil
}

// In sends an IN token to endpoint ep and returns the data packet. A NAK
// returns pkg.ErrNAK and a STALL returns pkg.ErrStall.
func (h *Host) In(ep uint8) ([]byte, bool, error) {
	t := Transaction{Token: TokenIn, Endpoint: ep}
	if !h.responds() {
		t.Err = ErrNoResponse
		h.record(t)
		return nil, false, t.Err
	}
	if h.busy() {
		t.Err = pkg.ErrNAK
		h.record(t)
		return nil, false, t.Err
	}
	ctrl := h.c.Read(hal.EndpointCtrl(ep))
	switch ctrl & hal.UEPTResMask {
	case hal.UEPTResStall:
		t.Err = pkg.ErrStall
	case hal.UEPTResNAK:
		t.Err = pkg.ErrNAK
	}
	if t.Err != nil {
		h.record(t)
		return nil, false, t.Err
	}

	_, in := h.c.ioBuffers(ep)
	n := int(h.c.Read(hal.EndpointTxLen(ep)))
	if n > len(in) {
		n = len(in)
	}
	t.Data = append([]byte{}, in[:n]...)
	t.DATA1 = ctrl&hal.UEPTTog != 0

	h.c.mu.Lock()
	if ctrl&hal.UEPAutoTog != 0 {
		h.c.regs[hal.EndpointCtrl(ep)] ^= hal.UEPTTog
	}
	h.c.regs[hal.IntSt] = hal.UISTokenIn | uint32(ep&hal.UISEndpMask)
	h.c.mu.Unlock()
	h.record(t)

	h.c.raise(hal.UITransfer)
	return t.Data, t.DATA1, nil
}

// Out sends an OUT token and a data packet with the given PID to endpoint
// ep. The controller accepts a packet with the wrong toggle but does not set
// TOG_OK.
func (h *Host) Out(ep uint8, data []byte, data1 bool) error {
	t := Transaction{Token: TokenOut, Endpoint: ep, Data: append([]byte{}, data...), DATA1: data1}
	if !h.responds() {
		t.Err = ErrNoResponse
		h.record(t)
		return t.Err
	}
	if h.busy() {
		t.Err = pkg.ErrNAK
		h.record(t)
		return t.Err
	}
	ctrl := h.c.Read(hal.EndpointCtrl(ep))
	switch ctrl & hal.UEPRResMask {
	case hal.UEPRResStall:
		t.Err = pkg.ErrStall
	case hal.UEPRResNAK:
		t.Err = pkg.ErrNAK
	}
	if t.Err != nil {
		h.record(t)
		return t.Err
	}

	out, _ := h.c.ioBuffers(ep)
	if len(data) > len(out) {
		t.Err = pkg.ErrBufferTooSmall
		h.record(t)
		return t.Err
	}

	h.c.mu.Lock()
	copy(out, data)
	st := hal.UISTokenOut | uint32(ep&hal.UISEndpMask)
	if data1 == (ctrl&hal.UEPRTog != 0) {
		st |= hal.UISTogOK
		if ctrl&hal.UEPAutoTog != 0 {
			h.c.regs[hal.EndpointCtrl(ep)] ^= hal.UEPRTog
		}
	}
	h.c.regs[hal.RxLen] = uint32(len(data))
	h.c.regs[hal.IntSt] = st
	h.c.mu.Unlock()
	h.record(t)

	h.c.raise(hal.UITransfer)
	return nil
}

// SOF delivers a start-of-frame marker through the transfer interrupt.
func (h *Host) SOF() {
	h.c.poke(hal.IntSt, hal.UISTokenSOF)
	h.c.raise(hal.UITransfer)
}

// BusReset signals a bus reset. The host returns to address 0.
func (h *Host) BusReset() {
	h.addr = 0
	h.c.raise(hal.UIBusRst)
}

// Suspend idles the bus long enough for the controller to report suspend.
func (h *Host) Suspend() {
	h.c.poke(hal.MisSt, h.c.Read(hal.MisSt)|hal.UMSSuspend)
	h.c.raise(hal.UISuspend)
}

// Resume ends a suspend.
func (h *Host) Resume() {
	h.c.poke(hal.MisSt, h.c.Read(hal.MisSt)&^hal.UMSSuspend)
	h.c.raise(hal.UISuspend)
}

// Raise sets an arbitrary interrupt flag, running the ISR if enabled.
func (h *Host) Raise(flag uint32) {
	h.c.raise(flag)
}

// ControlIn runs a device-to-host control transfer: SETUP, IN data packets
// until a short packet or wLength bytes, then the OUT status stage.
func (h *Host) ControlIn(setup [8]byte) ([]byte, error) {
	if err := h.Setup(setup); err != nil {
		return nil, err
	}
	want := int(binary.LittleEndian.Uint16(setup[6:8]))
	var data []byte
	for len(data) < want {
		pkt, _, err := h.In(0)
		if err != nil {
			return data, err
		}
		data = append(data, pkt...)
		if len(pkt) < maxPacket {
			break
		}
	}
	if err := h.Out(0, nil, true); err != nil {
		return data, err
	}
	return data, nil
}

// ControlOut runs a host-to-device control transfer: SETUP, OUT data
// packets starting with DATA1, then the IN status stage. A completed
// SET_ADDRESS moves the host to the new address.
func (h *Host) ControlOut(setup [8]byte, data []byte) error {
	if err := h.Setup(setup); err != nil {
		return err
	}
	data1 := true
	for off := 0; off < len(data); off += maxPacket {
		end := min(off+maxPacket, len(data))
		if err := h.Out(0, data[off:end], data1); err != nil {
			return err
		}
		data1 = !data1
	}
	status, _, err := h.In(0)
	if err != nil {
		return err
	}
	if len(status) != 0 {
		return fmt.Errorf("status stage carried %d bytes: %w", len(status), pkg.ErrProtocol)
	}
	if setup[0] == 0x00 && setup[1] == 0x05 {
		h.SetAddress(setup[2])
	}
	return nil
}
