package hid

// Short item prefixes (HID 1.11 §6.2.2), size bits clear.
const (
	itemInput         = 0x80
	itemOutput        = 0x90
	itemFeature       = 0xB0
	itemCollection    = 0xA0
	itemEndCollection = 0xC0

	itemUsagePage      = 0x04
	itemLogicalMinimum = 0x14
	itemLogicalMaximum = 0x24
	itemReportSize     = 0x74
	itemReportID       = 0x84
	itemReportCount    = 0x94

	itemUsage        = 0x08
	itemUsageMinimum = 0x18
	itemUsageMaximum = 0x28
)

// Main item data bits.
const (
	Data     = 0x00
	Constant = 0x01
	Array    = 0x00
	Variable = 0x02
	Absolute = 0x00
	Relative = 0x04
)

// Collection types.
const (
	CollectionPhysical    = 0x00
	CollectionApplication = 0x01
	CollectionLogical     = 0x02
)

// Usage pages.
const (
	UsagePageGenericDesktop = 0x01
	UsagePageKeyboard       = 0x07
	UsagePageLEDs           = 0x08
	UsagePageButton         = 0x09
)

// Generic desktop usages.
const (
	UsagePointer  = 0x01
	UsageMouse    = 0x02
	UsageKeyboard = 0x06
	UsageX        = 0x30
	UsageY        = 0x31
	UsageWheel    = 0x38
)

// ReportBuilder encodes a report descriptor from short items. Each item is
// emitted with the smallest data size that holds its value; main items carry
// at least one data byte. Logical extents are signed, everything else is
// unsigned.
type ReportBuilder struct {
	buf []byte
}

func (b *ReportBuilder) unsigned(prefix uint8, v uint32) *ReportBuilder {
	switch {
	case v <= 0xFF:
		b.buf = append(b.buf, prefix|1, byte(v))
	case v <= 0xFFFF:
		b.buf = append(b.buf, prefix|2, byte(v), byte(v>>8))
	default:
		b.buf = append(b.buf, prefix|3, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	return b
}

func (b *ReportBuilder) signed(prefix uint8, v int32) *ReportBuilder {
	switch {
	case v >= -128 && v <= 127:
		b.buf = append(b.buf, prefix|1, byte(v))
	case v >= -32768 && v <= 32767:
		b.buf = append(b.buf, prefix|2, byte(v), byte(v>>8))
	default:
		b.buf = append(b.buf, prefix|3, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	return b
}

func (b *ReportBuilder) UsagePage(page uint16) *ReportBuilder {
	return b.unsigned(itemUsagePage, uint32(page))
}

func (b *ReportBuilder) Usage(usage uint16) *ReportBuilder {
	return b.unsigned(itemUsage, uint32(usage))
}

func (b *ReportBuilder) UsageMinimum(usage uint16) *ReportBuilder {
	return b.unsigned(itemUsageMinimum, uint32(usage))
}

func (b *ReportBuilder) UsageMaximum(usage uint16) *ReportBuilder {
	return b.unsigned(itemUsageMaximum, uint32(usage))
}

func (b *ReportBuilder) LogicalMinimum(v int32) *ReportBuilder {
	return b.signed(itemLogicalMinimum, v)
}

func (b *ReportBuilder) LogicalMaximum(v int32) *ReportBuilder {
	return b.signed(itemLogicalMaximum, v)
}

// ReportSize sets the size of one field in bits.
func (b *ReportBuilder) ReportSize(bits uint8) *ReportBuilder {
	return b.unsigned(itemReportSize, uint32(bits))
}

func (b *ReportBuilder) ReportCount(n uint8) *ReportBuilder {
	return b.unsigned(itemReportCount, uint32(n))
}

func (b *ReportBuilder) ReportID(id uint8) *ReportBuilder {
	return b.unsigned(itemReportID, uint32(id))
}

func (b *ReportBuilder) Input(flags uint8) *ReportBuilder {
	return b.unsigned(itemInput, uint32(flags))
}

func (b *ReportBuilder) Output(flags uint8) *ReportBuilder {
	return b.unsigned(itemOutput, uint32(flags))
}

func (b *ReportBuilder) Feature(flags uint8) *ReportBuilder {
	return b.unsigned(itemFeature, uint32(flags))
}

func (b *ReportBuilder) Collection(kind uint8) *ReportBuilder {
	return b.unsigned(itemCollection, uint32(kind))
}

func (b *ReportBuilder) EndCollection() *ReportBuilder {
	b.buf = append(b.buf, itemEndCollection)
	return b
}

// Bytes returns the encoded descriptor.
func (b *ReportBuilder) Bytes() []byte {
	return b.buf
}

// KeyboardReportDescriptor returns the boot keyboard report descriptor:
// a modifier byte, a reserved byte and six key codes in, five LED bits out.
func KeyboardReportDescriptor() []byte {
	var b ReportBuilder
	return b.UsagePage(UsagePageGenericDesktop).
		Usage(UsageKeyboard).
		Collection(CollectionApplication).
		UsagePage(UsagePageKeyboard).
		UsageMinimum(0xE0).UsageMaximum(0xE7).
		LogicalMinimum(0).LogicalMaximum(1).
		ReportSize(1).ReportCount(8).
		Input(Data | Variable | Absolute).
		ReportCount(1).ReportSize(8).
		Input(Constant).
		ReportCount(5).ReportSize(1).
		UsagePage(UsagePageLEDs).
		UsageMinimum(1).UsageMaximum(5).
		Output(Data | Variable | Absolute).
		ReportCount(1).ReportSize(3).
		Output(Constant).
		ReportCount(6).ReportSize(8).
		LogicalMinimum(0).LogicalMaximum(101).
		UsagePage(UsagePageKeyboard).
		UsageMinimum(0).UsageMaximum(101).
		Input(Data | Array).
		EndCollection().
		Bytes()
}

// MouseReportDescriptor returns a three-button mouse report descriptor with
// relative X, Y and wheel axes.
func MouseReportDescriptor() []byte {
	var b ReportBuilder
	return b.UsagePage(UsagePageGenericDesktop).
		Usage(UsageMouse).
		Collection(CollectionApplication).
		Usage(UsagePointer).
		Collection(CollectionPhysical).
		UsagePage(UsagePageButton).
		UsageMinimum(1).UsageMaximum(3).
		LogicalMinimum(0).LogicalMaximum(1).
		ReportCount(3).ReportSize(1).
		Input(Data | Variable | Absolute).
		ReportCount(1).ReportSize(5).
		Input(Constant).
		UsagePage(UsagePageGenericDesktop).
		Usage(UsageX).Usage(UsageY).Usage(UsageWheel).
		LogicalMinimum(-127).LogicalMaximum(127).
		ReportSize(8).ReportCount(3).
		Input(Data | Variable | Relative).
		EndCollection().
		EndCollection().
		Bytes()
}

// KeyboardReport is an 8-byte keyboard input report.
type KeyboardReport struct {
	Modifiers uint8    // Modifier key state
	Reserved  uint8    // Reserved (always 0)
	Keys      [6]uint8 // Up to 6 simultaneous key codes
}

// KeyboardReportSize is the size of a keyboard report in bytes.
const KeyboardReportSize = 8

// MarshalTo writes the keyboard report to buf.
func (r *KeyboardReport) MarshalTo(buf []byte) int {
	if len(buf) < KeyboardReportSize {
		return 0
	}
	buf[0] = r.Modifiers
	buf[1] = r.Reserved
	copy(buf[2:KeyboardReportSize], r.Keys[:])
	return KeyboardReportSize
}

// Clear releases every key.
func (r *KeyboardReport) Clear() {
	*r = KeyboardReport{}
}

// SetKey presses key. Returns false when all six slots are in use.
func (r *KeyboardReport) SetKey(key uint8) bool {
	for i := range r.Keys {
		if r.Keys[i] == 0 {
			r.Keys[i] = key
			return true
		}
		if r.Keys[i] == key {
			return true
		}
	}
	return false
}

// ClearKey releases key, keeping the remaining keys packed.
func (r *KeyboardReport) ClearKey(key uint8) {
	for i := range r.Keys {
		if r.Keys[i] == key {
			copy(r.Keys[i:], r.Keys[i+1:])
			r.Keys[len(r.Keys)-1] = 0
			return
		}
	}
}

// MouseReport is a 4-byte mouse input report.
type MouseReport struct {
	Buttons uint8 // Button state
	X       int8  // X movement (-127 to 127)
	Y       int8  // Y movement (-127 to 127)
	Wheel   int8  // Wheel movement (-127 to 127)
}

// MouseReportSize is the size of a mouse report in bytes.
const MouseReportSize = 4

// MarshalTo writes the mouse report to buf.
func (r *MouseReport) MarshalTo(buf []byte) int {
	if len(buf) < MouseReportSize {
		return 0
	}
	buf[0] = r.Buttons
	buf[1] = byte(r.X)
	buf[2] = byte(r.Y)
	buf[3] = byte(r.Wheel)
	return MouseReportSize
}
