package hal

import "time"

// PullLine selects one of the USB data-line pull-up resistors.
type PullLine uint8

// Pull-up lines.
const (
	PullDP PullLine = iota // D+ (1.5k full-speed pull-up)
	PullDM                 // D- (low-speed pull-up, used for resume signalling)
)

// String returns the pin name.
func (p PullLine) String() string {
	if p == PullDM {
		return "UDM"
	}
	return "UDP"
}

// Controller is the register-level interface to a USBFS device controller.
//
// The control-transfer engine touches hardware only through this interface,
// so the protocol logic runs unchanged against silicon or against the
// software register bank in [github.com/ch643/usbfsd/device/hal/sim].
//
// Read and Write access registers by name. INT_FG is write-1-to-clear; every
// other register stores the written value. Write must be safe to call from
// the interrupt context.
type Controller interface {
	// Read returns the current value of a register.
	Read(r Register) uint32

	// Write stores a value to a register.
	Write(r Register, v uint32)

	// BindBuffer programs the DMA address of endpoint n to buf. The
	// controller reads IN payloads from and writes OUT payloads to buf.
	BindBuffer(n uint8, buf []byte)

	// SetIRQ enables or disables the controller interrupt line.
	SetIRQ(enabled bool)

	// SetPullUp drives the data-line pull-up resistors (GPIO collaborator).
	SetPullUp(line PullLine, on bool)

	// Delay busy-waits for d.
	Delay(d time.Duration)
}

// Set performs a read-modify-write setting mask in r.
func Set(c Controller, r Register, mask uint32) {
	c.Write(r, c.Read(r)|mask)
}

// Clear performs a read-modify-write clearing mask in r.
func Clear(c Controller, r Register, mask uint32) {
	c.Write(r, c.Read(r)&^mask)
}

// Modify performs a read-modify-write replacing the field clear with set.
func Modify(c Controller, r Register, clear, set uint32) {
	c.Write(r, c.Read(r)&^clear|set)
}

// Toggle performs a read-modify-write inverting mask in r.
func Toggle(c Controller, r Register, mask uint32) {
	c.Write(r, c.Read(r)^mask)
}

// SetTxResponse replaces the IN handshake response of endpoint n.
func SetTxResponse(c Controller, n uint8, res uint32) {
	Modify(c, EndpointCtrl(n), UEPTResMask, res&UEPTResMask)
}

// SetRxResponse replaces the OUT handshake response of endpoint n.
func SetRxResponse(c Controller, n uint8, res uint32) {
	Modify(c, EndpointCtrl(n), UEPRResMask, res&UEPRResMask)
}

// TxResponse returns the IN handshake response of endpoint n.
func TxResponse(c Controller, n uint8) uint32 {
	return c.Read(EndpointCtrl(n)) & UEPTResMask
}

// RxResponse returns the OUT handshake response of endpoint n.
func RxResponse(c Controller, n uint8) uint32 {
	return c.Read(EndpointCtrl(n)) & UEPRResMask
}

// ResponseName returns a readable name for a handshake response field
// value of either direction.
func ResponseName(res uint32) string {
	switch res {
	case UEPTResACK:
		return "ACK"
	case UEPTResTOUT, UEPRResTOUT:
		return "TOUT"
	case UEPTResNAK, UEPRResNAK:
		return "NAK"
	case UEPTResStall, UEPRResStall:
		return "STALL"
	default:
		return "?"
	}
}
