package cdc

import (
	"sync"

	"github.com/ch643/usbfsd/device"
	"github.com/ch643/usbfsd/pkg"
)

// Bulk OUT packets are queued in a ring of RingPackets slots. The data
// endpoint NAKs once HoldThreshold packets are waiting and resumes when Read
// drains the ring below ResumeThreshold.
const (
	RingPackets     = 32
	HoldThreshold   = RingPackets - 2
	ResumeThreshold = RingPackets / 2

	// TxBufferSize bounds the bytes Write queues for the host.
	TxBufferSize = 2048
)

// Port moves data through the device's endpoints. *device.Engine implements
// it.
type Port interface {
	Upload(ep uint8, data []byte) error
	ResumeOut(ep uint8) error
}

type packet struct {
	buf [DataPacketSize]byte
	n   int
}

// ACM implements a CDC-ACM virtual COM port.
type ACM struct {
	mutex sync.Mutex
	port  Port

	lineCoding   LineCoding
	controlState uint16
	configured   bool

	// Host to device packets.
	ring  [RingPackets]packet
	head  int
	count int
	off   int
	held  bool

	// Device to host bytes, sent one packet at a time from EndpointIn.
	tx      []byte
	sending bool
	zlp     bool

	notify [10]byte

	onLineCoding   func(LineCoding)
	onControlState func(dtr, rts bool)
	onBreak        func(millis uint16)
}

// NewACM returns a port with the default line coding.
func NewACM() *ACM {
	a := &ACM{tx: make([]byte, 0, TxBufferSize)}
	a.reset()
	return a
}

// Bind sets the endpoint port used for data transfer.
func (a *ACM) Bind(p Port) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.port = p
}

// SetOnLineCodingChange sets the callback run after SET_LINE_CODING.
func (a *ACM) SetOnLineCodingChange(cb func(LineCoding)) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.onLineCoding = cb
}

// SetOnControlStateChange sets the callback run after
// SET_CONTROL_LINE_STATE.
func (a *ACM) SetOnControlStateChange(cb func(dtr, rts bool)) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.onControlState = cb
}

// SetOnBreak sets the callback run after SEND_BREAK.
func (a *ACM) SetOnBreak(cb func(millis uint16)) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.onBreak = cb
}

// LineCoding returns the current line coding.
func (a *ACM) LineCoding() LineCoding {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.lineCoding
}

// DTR reports the Data Terminal Ready line.
func (a *ACM) DTR() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.controlState&ControlLineDTR != 0
}

// RTS reports the Request To Send line.
func (a *ACM) RTS() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.controlState&ControlLineRTS != 0
}

// IsConfigured reports whether the host has selected the configuration.
func (a *ACM) IsConfigured() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.configured
}

// Buffered returns the number of OUT packets waiting to be read.
func (a *ACM) Buffered() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.count
}

func (a *ACM) reset() {
	a.lineCoding = DefaultLineCoding
	a.controlState = 0
	a.configured = false
	a.head, a.count, a.off = 0, 0, 0
	a.held = false
	a.tx = a.tx[:0]
	a.sending = false
	a.zlp = false
}

// Setup implements device.ClassHandler.
func (a *ACM) Setup(setup *device.SetupPacket) ([]byte, error) {
	if setup.Index != InterfaceComm {
		return nil, pkg.ErrInvalidRequest
	}

	switch setup.Request {
	case RequestGetLineCoding:
		a.mutex.Lock()
		lc := a.lineCoding
		a.mutex.Unlock()
		buf := make([]byte, LineCodingSize)
		lc.MarshalTo(buf)
		return buf, nil

	case RequestSetLineCoding:
		// Applied when the data stage arrives.
		return nil, nil

	case RequestSetControlLineState:
		a.mutex.Lock()
		a.controlState = setup.Value
		cb := a.onControlState
		a.mutex.Unlock()
		dtr, rts := setup.Value&ControlLineDTR != 0, setup.Value&ControlLineRTS != 0
		pkg.LogDebug(pkg.ComponentClass, "SET_CONTROL_LINE_STATE", "dtr", dtr, "rts", rts)
		if cb != nil {
			cb(dtr, rts)
		}
		return nil, nil

	case RequestSendBreak:
		a.mutex.Lock()
		cb := a.onBreak
		a.mutex.Unlock()
		pkg.LogDebug(pkg.ComponentClass, "SEND_BREAK", "ms", setup.Value)
		if cb != nil {
			cb(setup.Value)
		}
		return nil, nil

	default:
		return nil, pkg.ErrNotSupported
	}
}

// ControlOut implements device.ClassHandler. The only data stage is the
// line coding of SET_LINE_CODING.
func (a *ACM) ControlOut(setup *device.SetupPacket, data []byte) error {
	if setup.Request != RequestSetLineCoding {
		return nil
	}
	var lc LineCoding
	if !ParseLineCoding(data, &lc) {
		return pkg.ErrInvalidRequest
	}

	a.mutex.Lock()
	a.lineCoding = lc
	cb := a.onLineCoding
	a.mutex.Unlock()

	pkg.LogDebug(pkg.ComponentClass, "SET_LINE_CODING", "line", lc.String())
	if cb != nil {
		cb(lc)
	}
	return nil
}

// Descriptor implements device.ClassHandler. The functional descriptors
// are only reachable through the configuration descriptor.
func (a *ACM) Descriptor(*device.SetupPacket) ([]byte, bool) {
	return nil, false
}

// Reset implements device.ClassHandler.
func (a *ACM) Reset() {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.reset()
}

// Configured implements device.ConfigHandler.
func (a *ACM) Configured(value uint8) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.configured = value != 0
}

// EndpointOut implements device.EndpointOutHandler. It queues a bulk OUT
// packet and asks for back-pressure once the ring nears full.
func (a *ACM) EndpointOut(ep uint8, data []byte) bool {
	if ep != EndpointDataOut {
		return true
	}
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.count == RingPackets {
		pkg.LogWarn(pkg.ComponentClass, "receive ring overrun", "bytes", len(data))
		a.held = true
		return false
	}
	slot := &a.ring[(a.head+a.count)%RingPackets]
	slot.n = copy(slot.buf[:], data)
	a.count++

	if a.count >= HoldThreshold {
		a.held = true
		pkg.LogDebug(pkg.ComponentClass, "receive ring full", "packets", a.count)
		return false
	}
	return true
}

// Read copies received bytes into p and returns how many were copied. It
// returns 0 when nothing is buffered. Draining the ring below
// ResumeThreshold lifts back-pressure on the data endpoint.
func (a *ACM) Read(p []byte) (int, error) {
	a.mutex.Lock()
	n := 0
	for n < len(p) && a.count > 0 {
		slot := &a.ring[a.head]
		c := copy(p[n:], slot.buf[a.off:slot.n])
		n += c
		a.off += c
		if a.off == slot.n {
			a.head = (a.head + 1) % RingPackets
			a.count--
			a.off = 0
		}
	}
	resume := a.held && a.count < ResumeThreshold
	if resume {
		a.held = false
	}
	port := a.port
	a.mutex.Unlock()

	if resume && port != nil {
		if err := port.ResumeOut(EndpointDataOut); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Write queues p for the host and starts a transfer if none is running.
// It returns the number of bytes queued, with pkg.ErrNotReady when the
// transmit buffer could not take all of p.
func (a *ACM) Write(p []byte) (int, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if !a.configured || a.port == nil {
		return 0, pkg.ErrNotConfigured
	}
	n := min(len(p), cap(a.tx)-len(a.tx))
	a.tx = append(a.tx, p[:n]...)
	if !a.sending {
		a.pump()
	}
	if n < len(p) {
		return n, pkg.ErrNotReady
	}
	return n, nil
}

// Pending returns the number of bytes queued but not yet handed to the
// controller.
func (a *ACM) Pending() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return len(a.tx)
}

// pump stages the next packet on the bulk IN endpoint. A transfer that
// ends on a full packet is closed with a zero-length packet.
func (a *ACM) pump() {
	var chunk []byte
	switch {
	case len(a.tx) > 0:
		chunk = a.tx[:min(len(a.tx), DataPacketSize)]
	case a.zlp:
	default:
		a.sending = false
		return
	}
	if err := a.port.Upload(EndpointDataIn, chunk); err != nil {
		pkg.LogWarn(pkg.ComponentClass, "bulk upload failed", "error", err)
		a.sending = false
		return
	}
	a.sending = true
	a.zlp = len(chunk) == DataPacketSize
	a.tx = a.tx[:copy(a.tx, a.tx[len(chunk):])]
}

// EndpointIn implements device.EndpointInHandler.
func (a *ACM) EndpointIn(ep uint8) {
	if ep != EndpointDataIn {
		return
	}
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.port != nil {
		a.pump()
	}
}

// SendSerialState sends a SERIAL_STATE notification on the interrupt
// endpoint.
func (a *ACM) SendSerialState(state uint16) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if !a.configured || a.port == nil {
		return pkg.ErrNotConfigured
	}
	a.notify = [10]byte{
		device.RequestDirectionDeviceToHost | device.RequestTypeClass | device.RequestRecipientInterface,
		NotificationSerialState,
		0, 0,
		InterfaceComm, 0,
		2, 0,
		byte(state), byte(state >> 8),
	}
	return a.port.Upload(EndpointNotify, a.notify[:])
}

var (
	_ device.ClassHandler       = (*ACM)(nil)
	_ device.ConfigHandler      = (*ACM)(nil)
	_ device.EndpointInHandler  = (*ACM)(nil)
	_ device.EndpointOutHandler = (*ACM)(nil)
)
