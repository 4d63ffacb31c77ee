package device

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/ch643/usbfsd/pkg"
)

// USB Descriptor Types (USB 2.0 Spec Table 9-5).
const (
	DescriptorTypeDevice          = 0x01
	DescriptorTypeConfiguration   = 0x02
	DescriptorTypeString          = 0x03
	DescriptorTypeInterface       = 0x04
	DescriptorTypeEndpoint        = 0x05
	DescriptorTypeDeviceQualifier = 0x06
	DescriptorTypeHID             = 0x21
	DescriptorTypeHIDReport       = 0x22
	DescriptorTypeCSInterface     = 0x24 // Class-specific interface
	DescriptorTypeCSEndpoint      = 0x25 // Class-specific endpoint
)

// USB Class Codes.
const (
	ClassPerInterface = 0x00 // Class defined at interface level
	ClassCDC          = 0x02 // Communications Device Class
	ClassHID          = 0x03 // Human Interface Device
	ClassCDCData      = 0x0A // CDC-Data
	ClassMisc         = 0xEF // Miscellaneous
	ClassVendor       = 0xFF // Vendor Specific
)

// DeviceDescriptor represents a USB device descriptor (18 bytes).
type DeviceDescriptor struct {
	Length            uint8  // Size of this descriptor (18)
	DescriptorType    uint8  // Device descriptor type (0x01)
	USBVersion        uint16 // USB specification version (BCD)
	DeviceClass       uint8  // Class code
	DeviceSubClass    uint8  // Subclass code
	DeviceProtocol    uint8  // Protocol code
	MaxPacketSize0    uint8  // Max packet size for EP0
	VendorID          uint16 // Vendor ID
	ProductID         uint16 // Product ID
	DeviceVersion     uint16 // Device release number (BCD)
	ManufacturerIndex uint8  // Index of manufacturer string
	ProductIndex      uint8  // Index of product string
	SerialNumberIndex uint8  // Index of serial number string
	NumConfigurations uint8  // Number of configurations
}

// DeviceDescriptorSize is the size of a device descriptor in bytes.
const DeviceDescriptorSize = 18

// MarshalTo serializes the device descriptor to buf.
// Returns the number of bytes written (always 18 if buf is large enough).
func (d *DeviceDescriptor) MarshalTo(buf []byte) int {
	if len(buf) < DeviceDescriptorSize {
		return 0
	}
	buf[0] = DeviceDescriptorSize
	buf[1] = DescriptorTypeDevice
	binary.LittleEndian.PutUint16(buf[2:4], d.USBVersion)
	buf[4] = d.DeviceClass
	buf[5] = d.DeviceSubClass
	buf[6] = d.DeviceProtocol
	buf[7] = d.MaxPacketSize0
	binary.LittleEndian.PutUint16(buf[8:10], d.VendorID)
	binary.LittleEndian.PutUint16(buf[10:12], d.ProductID)
	binary.LittleEndian.PutUint16(buf[12:14], d.DeviceVersion)
	buf[14] = d.ManufacturerIndex
	buf[15] = d.ProductIndex
	buf[16] = d.SerialNumberIndex
	buf[17] = d.NumConfigurations
	return DeviceDescriptorSize
}

// ParseDeviceDescriptor parses a device descriptor from bytes into out.
// Returns an error if the data is too short or the descriptor type is wrong.
func ParseDeviceDescriptor(data []byte, out *DeviceDescriptor) error {
	if len(data) < DeviceDescriptorSize {
		return pkg.ErrDescriptorTooShort
	}
	if data[1] != DescriptorTypeDevice {
		return pkg.ErrDescriptorTypeMismatch
	}
	out.Length = data[0]
	out.DescriptorType = data[1]
	out.USBVersion = binary.LittleEndian.Uint16(data[2:4])
	out.DeviceClass = data[4]
	out.DeviceSubClass = data[5]
	out.DeviceProtocol = data[6]
	out.MaxPacketSize0 = data[7]
	out.VendorID = binary.LittleEndian.Uint16(data[8:10])
	out.ProductID = binary.LittleEndian.Uint16(data[10:12])
	out.DeviceVersion = binary.LittleEndian.Uint16(data[12:14])
	out.ManufacturerIndex = data[14]
	out.ProductIndex = data[15]
	out.SerialNumberIndex = data[16]
	out.NumConfigurations = data[17]
	return nil
}

// ConfigurationDescriptor represents a USB configuration descriptor (9 bytes).
type ConfigurationDescriptor struct {
	Length             uint8  // Size of this descriptor (9)
	DescriptorType     uint8  // Configuration descriptor type (0x02)
	TotalLength        uint16 // Total length of configuration data
	NumInterfaces      uint8  // Number of interfaces
	ConfigurationValue uint8  // Configuration value for SET_CONFIGURATION
	ConfigurationIndex uint8  // Index of string descriptor
	Attributes         uint8  // Configuration attributes
	MaxPower           uint8  // Maximum power consumption (2mA units)
}

// Configuration attribute bits.
const (
	ConfigAttrBusPowered   = 0x80 // Bus-powered (required)
	ConfigAttrSelfPowered  = 0x40 // Self-powered
	ConfigAttrRemoteWakeup = 0x20 // Remote wakeup capable
)

// ConfigurationDescriptorSize is the size of a configuration descriptor in bytes.
const ConfigurationDescriptorSize = 9

// MarshalTo serializes the configuration descriptor to buf.
// Returns the number of bytes written (always 9 if buf is large enough).
func (c *ConfigurationDescriptor) MarshalTo(buf []byte) int {
	if len(buf) < ConfigurationDescriptorSize {
		return 0
	}
	buf[0] = ConfigurationDescriptorSize
	buf[1] = DescriptorTypeConfiguration
	binary.LittleEndian.PutUint16(buf[2:4], c.TotalLength)
	buf[4] = c.NumInterfaces
	buf[5] = c.ConfigurationValue
	buf[6] = c.ConfigurationIndex
	buf[7] = c.Attributes
	buf[8] = c.MaxPower
	return ConfigurationDescriptorSize
}

// ParseConfigurationDescriptor parses a configuration descriptor from bytes into out.
// Returns an error if the data is too short or the descriptor type is wrong.
func ParseConfigurationDescriptor(data []byte, out *ConfigurationDescriptor) error {
	if len(data) < ConfigurationDescriptorSize {
		return pkg.ErrDescriptorTooShort
	}
	if data[1] != DescriptorTypeConfiguration {
		return pkg.ErrDescriptorTypeMismatch
	}
	out.Length = data[0]
	out.DescriptorType = data[1]
	out.TotalLength = binary.LittleEndian.Uint16(data[2:4])
	out.NumInterfaces = data[4]
	out.ConfigurationValue = data[5]
	out.ConfigurationIndex = data[6]
	out.Attributes = data[7]
	out.MaxPower = data[8]
	return nil
}

// InterfaceDescriptor represents a USB interface descriptor (9 bytes).
type InterfaceDescriptor struct {
	Length            uint8 // Size of this descriptor (9)
	DescriptorType    uint8 // Interface descriptor type (0x04)
	InterfaceNumber   uint8 // Interface number
	AlternateSetting  uint8 // Alternate setting number
	NumEndpoints      uint8 // Number of endpoints (excluding EP0)
	InterfaceClass    uint8 // Class code
	InterfaceSubClass uint8 // Subclass code
	InterfaceProtocol uint8 // Protocol code
	InterfaceIndex    uint8 // Index of string descriptor
}

// InterfaceDescriptorSize is the size of an interface descriptor in bytes.
const InterfaceDescriptorSize = 9

// MarshalTo serializes the interface descriptor to buf.
// Returns the number of bytes written (always 9 if buf is large enough).
func (i *InterfaceDescriptor) MarshalTo(buf []byte) int {
	if len(buf) < InterfaceDescriptorSize {
		return 0
	}
	buf[0] = InterfaceDescriptorSize
	buf[1] = DescriptorTypeInterface
	buf[2] = i.InterfaceNumber
	buf[3] = i.AlternateSetting
	buf[4] = i.NumEndpoints
	buf[5] = i.InterfaceClass
	buf[6] = i.InterfaceSubClass
	buf[7] = i.InterfaceProtocol
	buf[8] = i.InterfaceIndex
	return InterfaceDescriptorSize
}

// ParseInterfaceDescriptor parses an interface descriptor from bytes into out.
// Returns an error if the data is too short or the descriptor type is wrong.
func ParseInterfaceDescriptor(data []byte, out *InterfaceDescriptor) error {
	if len(data) < InterfaceDescriptorSize {
		return pkg.ErrDescriptorTooShort
	}
	if data[1] != DescriptorTypeInterface {
		return pkg.ErrDescriptorTypeMismatch
	}
	out.Length = data[0]
	out.DescriptorType = data[1]
	out.InterfaceNumber = data[2]
	out.AlternateSetting = data[3]
	out.NumEndpoints = data[4]
	out.InterfaceClass = data[5]
	out.InterfaceSubClass = data[6]
	out.InterfaceProtocol = data[7]
	out.InterfaceIndex = data[8]
	return nil
}

// EndpointDescriptor represents a USB endpoint descriptor (7 bytes).
type EndpointDescriptor struct {
	Length          uint8  // Size of this descriptor (7)
	DescriptorType  uint8  // Endpoint descriptor type (0x05)
	EndpointAddress uint8  // Endpoint address (including direction)
	Attributes      uint8  // Endpoint attributes (transfer type, etc.)
	MaxPacketSize   uint16 // Maximum packet size
	Interval        uint8  // Polling interval (for interrupt/isochronous)
}

// EndpointDescriptorSize is the size of an endpoint descriptor in bytes.
const EndpointDescriptorSize = 7

// MarshalTo serializes the endpoint descriptor to buf.
// Returns the number of bytes written (always 7 if buf is large enough).
func (e *EndpointDescriptor) MarshalTo(buf []byte) int {
	if len(buf) < EndpointDescriptorSize {
		return 0
	}
	buf[0] = EndpointDescriptorSize
	buf[1] = DescriptorTypeEndpoint
	buf[2] = e.EndpointAddress
	buf[3] = e.Attributes
	binary.LittleEndian.PutUint16(buf[4:6], e.MaxPacketSize)
	buf[6] = e.Interval
	return EndpointDescriptorSize
}

// ParseEndpointDescriptor parses an endpoint descriptor from bytes into out.
// Returns an error if the data is too short or the descriptor type is wrong.
func ParseEndpointDescriptor(data []byte, out *EndpointDescriptor) error {
	if len(data) < EndpointDescriptorSize {
		return pkg.ErrDescriptorTooShort
	}
	if data[1] != DescriptorTypeEndpoint {
		return pkg.ErrDescriptorTypeMismatch
	}
	out.Length = data[0]
	out.DescriptorType = data[1]
	out.EndpointAddress = data[2]
	out.Attributes = data[3]
	out.MaxPacketSize = binary.LittleEndian.Uint16(data[4:6])
	out.Interval = data[6]
	return nil
}

// StringDescriptorTo writes a USB string descriptor to buf.
// Returns the number of bytes written. The descriptor encodes the string
// as UTF-16LE. If buf is too small, returns 0.
func StringDescriptorTo(buf []byte, s string) int {
	runes := []rune(s)
	length := 2 + len(runes)*2
	if length > 254 {
		length = 254
		runes = runes[:(length-2)/2]
	}
	if len(buf) < length {
		return 0
	}
	buf[0] = uint8(length)
	buf[1] = DescriptorTypeString
	for i, r := range runes {
		binary.LittleEndian.PutUint16(buf[2+i*2:], uint16(r))
	}
	return length
}

// LanguageDescriptorTo writes the language ID string descriptor to buf.
// Standard language ID for US English is 0x0409.
// Returns the number of bytes written. If buf is too small, returns 0.
func LanguageDescriptorTo(buf []byte, langIDs ...uint16) int {
	length := 2 + len(langIDs)*2
	if len(buf) < length {
		return 0
	}
	buf[0] = uint8(length)
	buf[1] = DescriptorTypeString
	for i, id := range langIDs {
		binary.LittleEndian.PutUint16(buf[2+i*2:], id)
	}
	return length
}

// ParseStringDescriptor decodes the UTF-16LE text of a string descriptor.
func ParseStringDescriptor(data []byte) (string, error) {
	if len(data) < 2 || int(data[0]) > len(data) || data[0] < 2 {
		return "", pkg.ErrDescriptorTooShort
	}
	if data[1] != DescriptorTypeString {
		return "", pkg.ErrDescriptorTypeMismatch
	}
	units := make([]uint16, (int(data[0])-2)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(data[2+2*i:])
	}
	return string(utf16.Decode(units)), nil
}

// LangIDUSEnglish is the language ID for US English.
const LangIDUSEnglish = 0x0409

// StringDescriptor returns a newly allocated string descriptor for s.
func StringDescriptor(s string) []byte {
	buf := make([]byte, 2+2*len([]rune(s)))
	return buf[:StringDescriptorTo(buf, s)]
}

// LanguageDescriptor returns a newly allocated string descriptor 0.
func LanguageDescriptor(langIDs ...uint16) []byte {
	buf := make([]byte, 2+2*len(langIDs))
	return buf[:LanguageDescriptorTo(buf, langIDs...)]
}

// String descriptor indices served by the engine.
const (
	StringIndexLanguage     = 0
	StringIndexManufacturer = 1
	StringIndexProduct      = 2
	StringIndexSerial       = 3
)

// Descriptors is the read-only descriptor set a device serves.
type Descriptors struct {
	Device        []byte   // 18-byte device descriptor
	Configuration []byte   // full configuration descriptor set
	Strings       [][]byte // string descriptors by index; 0 is the language table
}

// Validate checks the device and configuration headers.
func (d *Descriptors) Validate() error {
	var dev DeviceDescriptor
	if err := ParseDeviceDescriptor(d.Device, &dev); err != nil {
		return err
	}
	var cfg ConfigurationDescriptor
	if err := ParseConfigurationDescriptor(d.Configuration, &cfg); err != nil {
		return err
	}
	if int(cfg.TotalLength) != len(d.Configuration) {
		return pkg.ErrDescriptorTooShort
	}
	return nil
}

// StringAt returns string descriptor i, or nil if it is not defined.
func (d *Descriptors) StringAt(i uint8) []byte {
	if int(i) >= len(d.Strings) {
		return nil
	}
	return d.Strings[i]
}

// ConfigurationValue returns bConfigurationValue.
func (d *Descriptors) ConfigurationValue() uint8 {
	if len(d.Configuration) < ConfigurationDescriptorSize {
		return 0
	}
	return d.Configuration[5]
}

// ConfigurationAttributes returns bmAttributes of the configuration.
func (d *Descriptors) ConfigurationAttributes() uint8 {
	if len(d.Configuration) < ConfigurationDescriptorSize {
		return 0
	}
	return d.Configuration[7]
}

// Each calls fn for every descriptor in the configuration set, in order,
// with the interface number it belongs to (0xFF before the first interface).
// Iteration stops when fn returns false or a descriptor is malformed.
func (d *Descriptors) Each(fn func(iface uint8, desc []byte) bool) {
	iface := uint8(0xFF)
	buf := d.Configuration
	for len(buf) >= 2 {
		n := int(buf[0])
		if n < 2 || n > len(buf) {
			return
		}
		if buf[1] == DescriptorTypeInterface && n >= 3 {
			iface = buf[2]
		}
		if !fn(iface, buf[:n]) {
			return
		}
		buf = buf[n:]
	}
}

// Find returns the first descriptor of type descType inside interface iface
// of the configuration set.
func (d *Descriptors) Find(iface, descType uint8) []byte {
	var found []byte
	d.Each(func(i uint8, desc []byte) bool {
		if i == iface && desc[1] == descType {
			found = desc
			return false
		}
		return true
	})
	return found
}

// Endpoints returns the endpoint descriptors of the configuration set.
func (d *Descriptors) Endpoints() []EndpointDescriptor {
	var eps []EndpointDescriptor
	d.Each(func(_ uint8, desc []byte) bool {
		var ep EndpointDescriptor
		if ParseEndpointDescriptor(desc, &ep) == nil {
			eps = append(eps, ep)
		}
		return true
	})
	return eps
}

// ConfigBuilder assembles a configuration descriptor set.
type ConfigBuilder struct {
	header ConfigurationDescriptor
	body   []byte
}

// NewConfigBuilder starts a configuration with the given value, attributes
// (ConfigAttrBusPowered is always set) and maximum power in 2 mA units.
func NewConfigBuilder(value, attributes, maxPower uint8) *ConfigBuilder {
	return &ConfigBuilder{header: ConfigurationDescriptor{
		ConfigurationValue: value,
		Attributes:         attributes | ConfigAttrBusPowered,
		MaxPower:           maxPower,
	}}
}

// Interface appends an interface descriptor.
func (b *ConfigBuilder) Interface(d InterfaceDescriptor) *ConfigBuilder {
	var buf [InterfaceDescriptorSize]byte
	d.MarshalTo(buf[:])
	b.body = append(b.body, buf[:]...)
	b.header.NumInterfaces++
	return b
}

// Endpoint appends an endpoint descriptor.
func (b *ConfigBuilder) Endpoint(d EndpointDescriptor) *ConfigBuilder {
	var buf [EndpointDescriptorSize]byte
	d.MarshalTo(buf[:])
	b.body = append(b.body, buf[:]...)
	return b
}

// Raw appends a class-specific descriptor verbatim.
func (b *ConfigBuilder) Raw(desc []byte) *ConfigBuilder {
	b.body = append(b.body, desc...)
	return b
}

// Bytes returns the configuration set with wTotalLength filled in.
func (b *ConfigBuilder) Bytes() []byte {
	b.header.TotalLength = uint16(ConfigurationDescriptorSize + len(b.body))
	out := make([]byte, ConfigurationDescriptorSize, int(b.header.TotalLength))
	b.header.MarshalTo(out)
	return append(out, b.body...)
}
