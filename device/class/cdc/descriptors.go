package cdc

import "github.com/ch643/usbfsd/device"

// Interfaces and endpoints of the ACM function.
const (
	InterfaceComm = 0
	InterfaceData = 1

	EndpointNotify  = 1 // interrupt IN
	EndpointDataOut = 2 // bulk OUT
	EndpointDataIn  = 3 // bulk IN

	NotifyPacketSize = 16
	DataPacketSize   = device.MaxPacketSize
)

// DefaultIdentity is the identity used when none is configured.
var DefaultIdentity = device.Identity{
	VendorID:      0x1A86,
	ProductID:     0xFE0C,
	DeviceVersion: 0x0100,
	Manufacturer:  "wch.cn",
	Product:       "CH643 Virtual COM Port",
	Serial:        "0123456789",
	MaxPower:      50,
}

// Descriptors returns the descriptor set of an ACM virtual COM port: a
// communication interface with a notification endpoint and a data
// interface with a bulk endpoint pair.
func Descriptors(id device.Identity) *device.Descriptors {
	cfg := device.NewConfigBuilder(1, id.Attributes(), id.MaxPower).
		Interface(device.InterfaceDescriptor{
			InterfaceNumber:   InterfaceComm,
			NumEndpoints:      1,
			InterfaceClass:    ClassCDC,
			InterfaceSubClass: SubclassACM,
			InterfaceProtocol: ProtocolAT,
		}).
		Raw(headerDescriptor(0x0110)).
		Raw(callManagementDescriptor(0, InterfaceData)).
		Raw(acmDescriptor(ACMCapLineCoding | ACMCapSendBreak)).
		Raw(unionDescriptor(InterfaceComm, InterfaceData)).
		Endpoint(device.EndpointDescriptor{
			EndpointAddress: device.EndpointDirectionIn | EndpointNotify,
			Attributes:      device.EndpointTypeInterrupt,
			MaxPacketSize:   NotifyPacketSize,
			Interval:        1,
		}).
		Interface(device.InterfaceDescriptor{
			InterfaceNumber: InterfaceData,
			NumEndpoints:    2,
			InterfaceClass:  ClassCDCData,
		}).
		Endpoint(device.EndpointDescriptor{
			EndpointAddress: device.EndpointDirectionOut | EndpointDataOut,
			Attributes:      device.EndpointTypeBulk,
			MaxPacketSize:   DataPacketSize,
		}).
		Endpoint(device.EndpointDescriptor{
			EndpointAddress: device.EndpointDirectionIn | EndpointDataIn,
			Attributes:      device.EndpointTypeBulk,
			MaxPacketSize:   DataPacketSize,
		}).
		Bytes()

	return &device.Descriptors{
		Device:        id.DeviceDescriptor(ClassCDC, 0, 0),
		Configuration: cfg,
		Strings:       id.Strings(),
	}
}
