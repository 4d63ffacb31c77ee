package cdc

import (
	"encoding/binary"
	"fmt"

	"github.com/ch643/usbfsd/device"
)

// CDC class codes.
const (
	ClassCDC     = device.ClassCDC
	ClassCDCData = device.ClassCDCData
)

// Class-specific descriptor type.
const DescriptorTypeCSInterface = device.DescriptorTypeCSInterface

// CDC functional descriptor subtypes.
const (
	SubtypeHeader         = 0x00
	SubtypeCallManagement = 0x01
	SubtypeACM            = 0x02
	SubtypeUnion          = 0x06
)

// CDC subclass and protocol codes.
const (
	SubclassACM  = 0x02 // Abstract Control Model
	ProtocolNone = 0x00
	ProtocolAT   = 0x01 // AT Commands: V.250
)

// CDC request codes.
const (
	RequestSendEncapsulatedCommand = 0x00
	RequestGetEncapsulatedResponse = 0x01
	RequestSetLineCoding           = 0x20
	RequestGetLineCoding           = 0x21
	RequestSetControlLineState     = 0x22
	RequestSendBreak               = 0x23
)

// NotificationSerialState is the SERIAL_STATE notification code.
const NotificationSerialState = 0x20

// LineCoding is the serial line configuration exchanged by
// GET_LINE_CODING and SET_LINE_CODING.
type LineCoding struct {
	DTERate    uint32 // baud
	CharFormat uint8  // stop bits: 0=1, 1=1.5, 2=2
	ParityType uint8  // 0=None, 1=Odd, 2=Even, 3=Mark, 4=Space
	DataBits   uint8  // 5, 6, 7, 8 or 16
}

// LineCodingSize is the wire size of LineCoding.
const LineCodingSize = 7

// Stop bit values.
const (
	StopBits1   = 0
	StopBits1_5 = 1
	StopBits2   = 2
)

// Parity values.
const (
	ParityNone  = 0
	ParityOdd   = 1
	ParityEven  = 2
	ParityMark  = 3
	ParitySpace = 4
)

// Control line state bits (SET_CONTROL_LINE_STATE wValue).
const (
	ControlLineDTR = 1 << 0
	ControlLineRTS = 1 << 1
)

// Serial state bits (SERIAL_STATE notification data).
const (
	SerialStateRxCarrier  = 1 << 0 // DCD
	SerialStateTxCarrier  = 1 << 1 // DSR
	SerialStateBreak      = 1 << 2
	SerialStateRingSignal = 1 << 3
	SerialStateFraming    = 1 << 4
	SerialStateParity     = 1 << 5
	SerialStateOverrun    = 1 << 6
)

// DefaultLineCoding is 115200 8N1, restored on every bus reset.
var DefaultLineCoding = LineCoding{
	DTERate:    115200,
	CharFormat: StopBits1,
	ParityType: ParityNone,
	DataBits:   8,
}

// String formats the line coding the way terminal programs show it, e.g.
// "115200 8N1".
func (lc LineCoding) String() string {
	parity := "?"
	if int(lc.ParityType) < len("NOEMS") {
		parity = "NOEMS"[lc.ParityType : lc.ParityType+1]
	}
	stop := "1"
	switch lc.CharFormat {
	case StopBits1_5:
		stop = "1.5"
	case StopBits2:
		stop = "2"
	}
	return fmt.Sprintf("%d %d%s%s", lc.DTERate, lc.DataBits, parity, stop)
}

// MarshalTo writes the LineCoding to buf.
// Returns the number of bytes written, or 0 if buf is too small.
func (lc *LineCoding) MarshalTo(buf []byte) int {
	if len(buf) < LineCodingSize {
		return 0
	}
	binary.LittleEndian.PutUint32(buf, lc.DTERate)
	buf[4] = lc.CharFormat
	buf[5] = lc.ParityType
	buf[6] = lc.DataBits
	return LineCodingSize
}

// ParseLineCoding parses LineCoding from data.
// Returns false if data is too short.
func ParseLineCoding(data []byte, out *LineCoding) bool {
	if len(data) < LineCodingSize {
		return false
	}
	out.DTERate = binary.LittleEndian.Uint32(data)
	out.CharFormat = data[4]
	out.ParityType = data[5]
	out.DataBits = data[6]
	return true
}

// Call management capability bits.
const (
	CallMgmtHandlesCallManagement = 1 << 0
	CallMgmtOverDataClass         = 1 << 1
)

// ACM capability bits.
const (
	ACMCapCommFeature = 1 << 0
	ACMCapLineCoding  = 1 << 1 // line coding and control line state
	ACMCapSendBreak   = 1 << 2
	ACMCapNetworkConn = 1 << 3
)

// headerDescriptor returns the Header functional descriptor.
func headerDescriptor(version uint16) []byte {
	return []byte{5, DescriptorTypeCSInterface, SubtypeHeader, byte(version), byte(version >> 8)}
}

func callManagementDescriptor(caps, dataIface uint8) []byte {
	return []byte{5, DescriptorTypeCSInterface, SubtypeCallManagement, caps, dataIface}
}

func acmDescriptor(caps uint8) []byte {
	return []byte{4, DescriptorTypeCSInterface, SubtypeACM, caps}
}

func unionDescriptor(control, data uint8) []byte {
	return []byte{5, DescriptorTypeCSInterface, SubtypeUnion, control, data}
}
