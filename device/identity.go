package device

// Identity describes who a device claims to be. Class packages turn it into a
// complete Descriptors set.
type Identity struct {
	VendorID      uint16
	ProductID     uint16
	DeviceVersion uint16 // BCD

	Manufacturer string
	Product      string
	Serial       string

	MaxPower     uint8 // 2 mA units
	RemoteWakeup bool
}

// DeviceDescriptor returns the 18-byte device descriptor for a
// single-configuration full-speed device of the given class triple.
func (id Identity) DeviceDescriptor(class, subclass, protocol uint8) []byte {
	d := DeviceDescriptor{
		USBVersion:        0x0200,
		DeviceClass:       class,
		DeviceSubClass:    subclass,
		DeviceProtocol:    protocol,
		MaxPacketSize0:    MaxPacketSize0,
		VendorID:          id.VendorID,
		ProductID:         id.ProductID,
		DeviceVersion:     id.DeviceVersion,
		NumConfigurations: 1,
	}
	if id.Manufacturer != "" {
		d.ManufacturerIndex = StringIndexManufacturer
	}
	if id.Product != "" {
		d.ProductIndex = StringIndexProduct
	}
	if id.Serial != "" {
		d.SerialNumberIndex = StringIndexSerial
	}
	buf := make([]byte, DeviceDescriptorSize)
	d.MarshalTo(buf)
	return buf
}

// Attributes returns the configuration bmAttributes.
func (id Identity) Attributes() uint8 {
	if id.RemoteWakeup {
		return ConfigAttrBusPowered | ConfigAttrRemoteWakeup
	}
	return ConfigAttrBusPowered
}

// Strings returns the string descriptor table: US English language IDs
// followed by the manufacturer, product and serial strings.
func (id Identity) Strings() [][]byte {
	return [][]byte{
		LanguageDescriptor(LangIDUSEnglish),
		StringDescriptor(id.Manufacturer),
		StringDescriptor(id.Product),
		StringDescriptor(id.Serial),
	}
}
