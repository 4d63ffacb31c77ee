package hal

import "fmt"

// Register identifies a USBFS controller register.
type Register uint8

// Global registers.
const (
	BaseCtrl Register = iota // R8_USB_CTRL
	UDevCtrl                 // R8_UDEV_CTRL
	IntEn                    // R8_USB_INT_EN
	DevAddr                  // R8_USB_DEV_AD
	MisSt                    // R8_USB_MIS_ST
	IntFg                    // R8_USB_INT_FG
	IntSt                    // R8_USB_INT_ST
	RxLen                    // R16_USB_RX_LEN
	UEP41Mod                 // R8_UEP4_1_MOD
	UEP23Mod                 // R8_UEP2_3_MOD
	UEP56Mod                 // R8_UEP5_6_MOD
	UEP7Mod                  // R8_UEP7_MOD

	endpointBase // first per-endpoint register
)

// NumEndpoints is the number of hardware endpoints (EP0-EP7).
const NumEndpoints = 8

// Per-endpoint register block layout.
const (
	epDMA = iota
	epTxLen
	epCtrlH
	epRegs
)

// NumRegisters is the size of the register file.
const NumRegisters = int(endpointBase) + NumEndpoints*epRegs

// EndpointDMA returns the DMA address register of endpoint n.
func EndpointDMA(n uint8) Register {
	return endpointBase + Register(n&0x07)*epRegs + epDMA
}

// EndpointTxLen returns the transmit length register of endpoint n.
func EndpointTxLen(n uint8) Register {
	return endpointBase + Register(n&0x07)*epRegs + epTxLen
}

// EndpointCtrl returns the control (handshake/toggle) register of endpoint n.
func EndpointCtrl(n uint8) Register {
	return endpointBase + Register(n&0x07)*epRegs + epCtrlH
}

var globalNames = [...]string{
	BaseCtrl: "BASE_CTRL",
	UDevCtrl: "UDEV_CTRL",
	IntEn:    "INT_EN",
	DevAddr:  "DEV_ADDR",
	MisSt:    "MIS_ST",
	IntFg:    "INT_FG",
	IntSt:    "INT_ST",
	RxLen:    "RX_LEN",
	UEP41Mod: "UEP4_1_MOD",
	UEP23Mod: "UEP2_3_MOD",
	UEP56Mod: "UEP5_6_MOD",
	UEP7Mod:  "UEP7_MOD",
}

// String returns the datasheet name of the register.
func (r Register) String() string {
	if r < endpointBase {
		return globalNames[r]
	}
	if int(r) >= NumRegisters {
		return fmt.Sprintf("REG(%d)", uint8(r))
	}
	off := r - endpointBase
	n := off / epRegs
	switch off % epRegs {
	case epDMA:
		return fmt.Sprintf("UEP%d_DMA", n)
	case epTxLen:
		return fmt.Sprintf("UEP%d_TX_LEN", n)
	default:
		return fmt.Sprintf("UEP%d_CTRL_H", n)
	}
}

// Endpoint returns the endpoint number of a per-endpoint register and true,
// or false for global registers.
func (r Register) Endpoint() (uint8, bool) {
	if r < endpointBase || int(r) >= NumRegisters {
		return 0, false
	}
	return uint8((r - endpointBase) / epRegs), true
}

// BASE_CTRL bits.
const (
	UCDMAEn    = 0x01 // DMA enable and DMA interrupt enable
	UCClrAll   = 0x02 // Force clear FIFO and count
	UCResetSIE = 0x04 // Force reset USB SIE
	UCIntBusy  = 0x08 // Auto NAK while interrupt flag pending
	UCDevPuEn  = 0x20 // Enable device pull-up
	UCLowSpeed = 0x40 // Low speed select
	UCHostMode = 0x80 // Host mode select
)

// UDEV_CTRL bits.
const (
	UDPortEn   = 0x01 // Enable USB physical port
	UDGPBit    = 0x02 // General purpose bit
	UDLowSpeed = 0x04 // Low speed select for the physical port
	UDDMPin    = 0x10 // UDM pin level (read only)
	UDDPPin    = 0x20 // UDP pin level (read only)
	UDPdDis    = 0x80 // Disable internal pull-down
)

// INT_EN and INT_FG bits.
const (
	UIBusRst   = 0x01 // Bus reset
	UITransfer = 0x02 // Transfer completed
	UISuspend  = 0x04 // Suspend or resume event
	UISOF      = 0x08 // Start of frame
	UIFIFOOv   = 0x10 // FIFO overflow
)

// INT_ST fields.
const (
	UISEndpMask  = 0x0F // Endpoint number of the current transfer
	UISTokenMask = 0x30 // Token PID of the current transfer
	UISTokenOut  = 0x00
	UISTokenSOF  = 0x10
	UISTokenIn   = 0x20
	UISTokenSet  = 0x30
	UISTogOK     = 0x40 // Received data toggle matched the expected one
	UISIsNAK     = 0x80 // NAK was returned in the current transfer
)

// MIS_ST bits.
const (
	UMSDevAttach = 0x01
	UMSSuspend   = 0x04 // Bus is idle in suspend state
	UMSSIEFree   = 0x20
)

// DEV_ADDR bits.
const (
	UDAGPBit   = 0x80 // General purpose bit preserved across address writes
	UDAAddress = 0x7F
)

// UEPn_CTRL_H bits.
const (
	UEPTResMask  = 0x03 // Transmit (IN) handshake response
	UEPTResACK   = 0x00
	UEPTResTOUT  = 0x01
	UEPTResNAK   = 0x02
	UEPTResStall = 0x03
	UEPRResMask  = 0x0C // Receive (OUT) handshake response
	UEPRResACK   = 0x00
	UEPRResTOUT  = 0x04
	UEPRResNAK   = 0x08
	UEPRResStall = 0x0C
	UEPAutoTog   = 0x10
	UEPTTog      = 0x40 // Expected transmit toggle: DATA1 when set
	UEPRTog      = 0x80 // Expected receive toggle: DATA1 when set
)

// ModeBits returns the mode register and enable bits for a data endpoint
// (1-7) in the given directions. ok is false for EP0 or out-of-range numbers.
func ModeBits(n uint8, in, out bool) (reg Register, bits uint32, ok bool) {
	var rx, tx uint32
	switch n {
	case 1:
		reg, rx, tx = UEP41Mod, 0x80, 0x40
	case 4:
		reg, rx, tx = UEP41Mod, 0x08, 0x04
	case 2:
		reg, rx, tx = UEP23Mod, 0x08, 0x04
	case 3:
		reg, rx, tx = UEP23Mod, 0x80, 0x40
	case 5:
		reg, rx, tx = UEP56Mod, 0x08, 0x04
	case 6:
		reg, rx, tx = UEP56Mod, 0x80, 0x40
	case 7:
		reg, rx, tx = UEP7Mod, 0x08, 0x04
	default:
		return 0, 0, false
	}
	if in {
		bits |= tx
	}
	if out {
		bits |= rx
	}
	return reg, bits, true
}
