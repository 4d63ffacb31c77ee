package hid

import (
	"fmt"
	"sync"

	"github.com/ch643/usbfsd/device"
	"github.com/ch643/usbfsd/pkg"
)

// Uploader stages a packet on an IN endpoint. *device.Engine implements it.
type Uploader interface {
	Upload(ep uint8, data []byte) error
}

// Handler implements the keyboard+mouse HID function.
type Handler struct {
	hidDesc [NumInterfaces][]byte

	mutex      sync.RWMutex
	up         Uploader
	idle       [NumInterfaces]uint8
	protocol   [NumInterfaces]uint8
	input      [NumInterfaces][]byte
	leds       uint8
	configured bool
	onLED      func(leds uint8)
}

// New returns a handler serving the HID descriptors embedded in desc, as
// built by Descriptors.
func New(desc *device.Descriptors) *Handler {
	h := &Handler{}
	for i := range h.hidDesc {
		h.hidDesc[i] = desc.Find(uint8(i), DescriptorTypeHID)
	}
	h.input[InterfaceKeyboard] = make([]byte, KeyboardReportSize)
	h.input[InterfaceMouse] = make([]byte, MouseReportSize)
	h.reset()
	return h
}

// Bind sets the endpoint uploader used by SendKeyboard and SendMouse.
func (h *Handler) Bind(up Uploader) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.up = up
}

// SetOnLED sets the callback run when the host writes the keyboard LED
// output report.
func (h *Handler) SetOnLED(cb func(leds uint8)) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.onLED = cb
}

// LEDs returns the last keyboard LED state written by the host.
func (h *Handler) LEDs() uint8 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.leds
}

// Idle returns the idle rate of an interface in 4 ms units.
func (h *Handler) Idle(iface uint8) uint8 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if iface >= NumInterfaces {
		return 0
	}
	return h.idle[iface]
}

// Protocol returns the protocol (boot or report) of an interface.
func (h *Handler) Protocol(iface uint8) uint8 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if iface >= NumInterfaces {
		return 0
	}
	return h.protocol[iface]
}

// IsConfigured reports whether the host has selected the configuration.
func (h *Handler) IsConfigured() bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.configured
}

func (h *Handler) reset() {
	h.idle = [NumInterfaces]uint8{}
	h.protocol = [NumInterfaces]uint8{ProtocolReport, ProtocolReport}
	h.leds = 0
	h.configured = false
	clear(h.input[InterfaceKeyboard])
	clear(h.input[InterfaceMouse])
}

// Setup implements device.ClassHandler.
func (h *Handler) Setup(setup *device.SetupPacket) ([]byte, error) {
	iface := setup.InterfaceNumber()
	if setup.Index >= NumInterfaces {
		return nil, fmt.Errorf("interface %d: %w", setup.Index, pkg.ErrInvalidRequest)
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	switch setup.Request {
	case RequestGetReport:
		return append([]byte(nil), h.input[iface]...), nil
	case RequestSetReport:
		return nil, nil
	case RequestSetIdle:
		h.idle[iface] = uint8(setup.Value >> 8)
		pkg.LogDebug(pkg.ComponentClass, "SET_IDLE", "interface", iface, "rate", h.idle[iface])
		return nil, nil
	case RequestGetIdle:
		return []byte{h.idle[iface]}, nil
	case RequestSetProtocol:
		h.protocol[iface] = uint8(setup.Value)
		pkg.LogDebug(pkg.ComponentClass, "SET_PROTOCOL", "interface", iface, "protocol", h.protocol[iface])
		return nil, nil
	case RequestGetProtocol:
		return []byte{h.protocol[iface]}, nil
	default:
		return nil, pkg.ErrNotSupported
	}
}

// ControlOut implements device.ClassHandler. The only data stage is the
// keyboard LED output report of SET_REPORT.
func (h *Handler) ControlOut(setup *device.SetupPacket, data []byte) error {
	if setup.Request != RequestSetReport || len(data) == 0 {
		return nil
	}
	if setup.InterfaceNumber() != InterfaceKeyboard || uint8(setup.Value>>8) != ReportTypeOutput {
		return nil
	}

	h.mutex.Lock()
	h.leds = data[0]
	cb := h.onLED
	h.mutex.Unlock()

	pkg.LogDebug(pkg.ComponentClass, "keyboard LEDs", "leds", fmt.Sprintf("0x%02X", data[0]))
	if cb != nil {
		cb(data[0])
	}
	return nil
}

// Descriptor implements device.ClassHandler for the HID and report
// descriptors of each interface.
func (h *Handler) Descriptor(setup *device.SetupPacket) ([]byte, bool) {
	if setup.Index >= NumInterfaces {
		return nil, false
	}
	iface := setup.InterfaceNumber()
	switch setup.DescriptorType() {
	case DescriptorTypeHID:
		return h.hidDesc[iface], h.hidDesc[iface] != nil
	case DescriptorTypeReport:
		return reportDescriptors[iface], true
	default:
		return nil, false
	}
}

// Reset implements device.ClassHandler.
func (h *Handler) Reset() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.reset()
}

// Configured implements device.ConfigHandler.
func (h *Handler) Configured(value uint8) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.configured = value != 0
}

func (h *Handler) send(iface, ep uint8, report []byte) error {
	h.mutex.Lock()
	up := h.up
	configured := h.configured
	h.mutex.Unlock()

	if !configured || up == nil {
		return pkg.ErrNotConfigured
	}
	if err := up.Upload(ep, report); err != nil {
		return err
	}

	h.mutex.Lock()
	copy(h.input[iface], report)
	h.mutex.Unlock()
	return nil
}

// SendKeyboard uploads a keyboard report. It returns pkg.ErrNotReady while
// the previous keyboard report is still waiting for the host.
func (h *Handler) SendKeyboard(report *KeyboardReport) error {
	var buf [KeyboardReportSize]byte
	report.MarshalTo(buf[:])
	return h.send(InterfaceKeyboard, EndpointKeyboard, buf[:])
}

// SendMouse uploads a mouse report. It returns pkg.ErrNotReady while the
// previous mouse report is still waiting for the host.
func (h *Handler) SendMouse(report *MouseReport) error {
	var buf [MouseReportSize]byte
	report.MarshalTo(buf[:])
	return h.send(InterfaceMouse, EndpointMouse, buf[:])
}

var (
	_ device.ClassHandler  = (*Handler)(nil)
	_ device.ConfigHandler = (*Handler)(nil)
)
