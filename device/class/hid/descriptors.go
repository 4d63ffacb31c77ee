package hid

import "github.com/ch643/usbfsd/device"

// Interfaces and endpoints of the keyboard+mouse function.
const (
	InterfaceKeyboard = 0
	InterfaceMouse    = 1
	NumInterfaces     = 2

	EndpointKeyboard = 1 // interrupt IN, 8-byte reports
	EndpointMouse    = 2 // interrupt IN, 4-byte reports

	pollInterval = 10 // ms
)

// DefaultIdentity is the identity used when none is configured.
var DefaultIdentity = device.Identity{
	VendorID:      0x1A86,
	ProductID:     0xFE07,
	DeviceVersion: 0x0100,
	Manufacturer:  "wch.cn",
	Product:       "CH643 Keyboard & Mouse",
	Serial:        "0123456789",
	MaxPower:      50,
	RemoteWakeup:  true,
}

var reportDescriptors = [NumInterfaces][]byte{
	InterfaceKeyboard: KeyboardReportDescriptor(),
	InterfaceMouse:    MouseReportDescriptor(),
}

func hidDescriptor(reportLen int) []byte {
	d := HIDDescriptor{HIDVersion: 0x0111, CountryCode: CountryNone, ReportDescLen: uint16(reportLen)}
	buf := make([]byte, HIDDescriptorSize)
	d.MarshalTo(buf)
	return buf
}

// Descriptors returns the descriptor set of a boot keyboard on interface 0
// and a boot mouse on interface 1, each with one interrupt IN endpoint.
func Descriptors(id device.Identity) *device.Descriptors {
	cfg := device.NewConfigBuilder(1, id.Attributes(), id.MaxPower).
		Interface(device.InterfaceDescriptor{
			InterfaceNumber:   InterfaceKeyboard,
			NumEndpoints:      1,
			InterfaceClass:    ClassHID,
			InterfaceSubClass: SubclassBoot,
			InterfaceProtocol: ProtocolKeyboard,
		}).
		Raw(hidDescriptor(len(reportDescriptors[InterfaceKeyboard]))).
		Endpoint(device.EndpointDescriptor{
			EndpointAddress: device.EndpointDirectionIn | EndpointKeyboard,
			Attributes:      device.EndpointTypeInterrupt,
			MaxPacketSize:   KeyboardReportSize,
			Interval:        pollInterval,
		}).
		Interface(device.InterfaceDescriptor{
			InterfaceNumber:   InterfaceMouse,
			NumEndpoints:      1,
			InterfaceClass:    ClassHID,
			InterfaceSubClass: SubclassBoot,
			InterfaceProtocol: ProtocolMouse,
		}).
		Raw(hidDescriptor(len(reportDescriptors[InterfaceMouse]))).
		Endpoint(device.EndpointDescriptor{
			EndpointAddress: device.EndpointDirectionIn | EndpointMouse,
			Attributes:      device.EndpointTypeInterrupt,
			MaxPacketSize:   MouseReportSize,
			Interval:        pollInterval,
		}).
		Bytes()

	return &device.Descriptors{
		Device:        id.DeviceDescriptor(device.ClassPerInterface, 0, 0),
		Configuration: cfg,
		Strings:       id.Strings(),
	}
}
