package device

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ch643/usbfsd/pkg"
)

func TestDeviceDescriptor_MarshalTo(t *testing.T) {
	desc := &DeviceDescriptor{
		USBVersion:        0x0200,
		MaxPacketSize0:    MaxPacketSize0,
		VendorID:          0x1A86,
		ProductID:         0xFE00,
		DeviceVersion:     0x0100,
		ManufacturerIndex: 1,
		ProductIndex:      2,
		SerialNumberIndex: 3,
		NumConfigurations: 1,
	}

	var buf [DeviceDescriptorSize]byte
	if n := desc.MarshalTo(buf[:]); n != DeviceDescriptorSize {
		t.Fatalf("MarshalTo() = %d, want %d", n, DeviceDescriptorSize)
	}
	want := []byte{
		0x12, 0x01, 0x00, 0x02, 0x00, 0x00, 0x00, 0x40,
		0x86, 0x1A, 0x00, 0xFE, 0x00, 0x01, 0x01, 0x02, 0x03, 0x01,
	}
	if !bytes.Equal(buf[:], want) {
		t.Errorf("MarshalTo() = % X, want % X", buf, want)
	}

	var parsed DeviceDescriptor
	if err := ParseDeviceDescriptor(buf[:], &parsed); err != nil {
		t.Fatalf("ParseDeviceDescriptor() error = %v", err)
	}
	if parsed.VendorID != 0x1A86 || parsed.ProductID != 0xFE00 {
		t.Errorf("parsed IDs = %04X:%04X, want 1A86:FE00", parsed.VendorID, parsed.ProductID)
	}
}

func TestParseDescriptorErrors(t *testing.T) {
	var dev DeviceDescriptor
	if err := ParseDeviceDescriptor(make([]byte, 10), &dev); !errors.Is(err, pkg.ErrDescriptorTooShort) {
		t.Errorf("short device descriptor error = %v", err)
	}
	bad := make([]byte, DeviceDescriptorSize)
	bad[1] = DescriptorTypeConfiguration
	if err := ParseDeviceDescriptor(bad, &dev); !errors.Is(err, pkg.ErrDescriptorTypeMismatch) {
		t.Errorf("mismatched device descriptor error = %v", err)
	}

	var ep EndpointDescriptor
	if err := ParseEndpointDescriptor([]byte{7, DescriptorTypeInterface, 0, 0, 0, 0, 0}, &ep); !errors.Is(err, pkg.ErrDescriptorTypeMismatch) {
		t.Errorf("mismatched endpoint descriptor error = %v", err)
	}
	var iface InterfaceDescriptor
	if err := ParseInterfaceDescriptor([]byte{9, 4}, &iface); !errors.Is(err, pkg.ErrDescriptorTooShort) {
		t.Errorf("short interface descriptor error = %v", err)
	}
}

func TestStringDescriptorTo(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 2},
		{"A", 4},
		{"wch.cn", 14},
		{"日本語", 8},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var buf [256]byte
			n := StringDescriptorTo(buf[:], tt.input)
			if n != tt.want {
				t.Errorf("len = %d, want %d", n, tt.want)
			}
			if buf[0] != uint8(tt.want) || buf[1] != DescriptorTypeString {
				t.Errorf("header = % X, want %02X 03", buf[:2], tt.want)
			}
		})
	}

	if got := StringDescriptor("A"); !bytes.Equal(got, []byte{4, 3, 'A', 0}) {
		t.Errorf("StringDescriptor(A) = % X", got)
	}
}

func TestStringDescriptorTo_MaxLength(t *testing.T) {
	long := string(bytes.Repeat([]byte{'A'}, 300))
	var buf [256]byte
	n := StringDescriptorTo(buf[:], long)
	if n != 254 {
		t.Errorf("len = %d, want 254", n)
	}
	if buf[0] != uint8(n) {
		t.Errorf("bLength = %d, actual len = %d", buf[0], n)
	}
	if buf[n-2] != 'A' {
		t.Errorf("last code unit = 0x%02X, want 'A'", buf[n-2])
	}
}

func TestLanguageDescriptor(t *testing.T) {
	if got := LanguageDescriptor(LangIDUSEnglish); !bytes.Equal(got, []byte{4, 3, 0x09, 0x04}) {
		t.Errorf("LanguageDescriptor() = % X", got)
	}
	var buf [2]byte
	if n := LanguageDescriptorTo(buf[:], 0x0409); n != 0 {
		t.Errorf("LanguageDescriptorTo(short) = %d, want 0", n)
	}
}

// testConfig builds a configuration with one vendor interface carrying an
// interrupt IN endpoint, a bulk OUT/IN pair on EP3 and a class-specific
// descriptor.
func testConfig() []byte {
	return NewConfigBuilder(1, ConfigAttrRemoteWakeup, 50).
		Interface(InterfaceDescriptor{InterfaceNumber: 0, NumEndpoints: 1, InterfaceClass: ClassVendor}).
		Raw([]byte{5, DescriptorTypeCSInterface, 0x00, 0x10, 0x01}).
		Endpoint(EndpointDescriptor{EndpointAddress: 0x81, Attributes: EndpointTypeInterrupt, MaxPacketSize: 8, Interval: 10}).
		Interface(InterfaceDescriptor{InterfaceNumber: 1, NumEndpoints: 2, InterfaceClass: ClassVendor}).
		Endpoint(EndpointDescriptor{EndpointAddress: 0x03, Attributes: EndpointTypeBulk, MaxPacketSize: 64}).
		Endpoint(EndpointDescriptor{EndpointAddress: 0x83, Attributes: EndpointTypeBulk, MaxPacketSize: 64}).
		Bytes()
}

func TestConfigBuilder(t *testing.T) {
	cfg := testConfig()
	wantLen := ConfigurationDescriptorSize + 2*InterfaceDescriptorSize + 3*EndpointDescriptorSize + 5
	if len(cfg) != wantLen {
		t.Fatalf("len = %d, want %d", len(cfg), wantLen)
	}

	var hdr ConfigurationDescriptor
	if err := ParseConfigurationDescriptor(cfg, &hdr); err != nil {
		t.Fatalf("ParseConfigurationDescriptor() error = %v", err)
	}
	if int(hdr.TotalLength) != wantLen {
		t.Errorf("TotalLength = %d, want %d", hdr.TotalLength, wantLen)
	}
	if hdr.NumInterfaces != 2 {
		t.Errorf("NumInterfaces = %d, want 2", hdr.NumInterfaces)
	}
	if hdr.Attributes != ConfigAttrBusPowered|ConfigAttrRemoteWakeup {
		t.Errorf("Attributes = 0x%02X, want 0xA0", hdr.Attributes)
	}
	if hdr.MaxPower != 50 {
		t.Errorf("MaxPower = %d, want 50", hdr.MaxPower)
	}
}

func TestDescriptors(t *testing.T) {
	var dev [DeviceDescriptorSize]byte
	(&DeviceDescriptor{MaxPacketSize0: 64, NumConfigurations: 1}).MarshalTo(dev[:])
	d := &Descriptors{
		Device:        dev[:],
		Configuration: testConfig(),
		Strings:       [][]byte{LanguageDescriptor(LangIDUSEnglish), StringDescriptor("wch")},
	}

	if err := d.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got := d.ConfigurationValue(); got != 1 {
		t.Errorf("ConfigurationValue() = %d, want 1", got)
	}
	if got := d.ConfigurationAttributes(); got&ConfigAttrRemoteWakeup == 0 {
		t.Errorf("ConfigurationAttributes() = 0x%02X, want remote wakeup", got)
	}
	if d.StringAt(1) == nil || d.StringAt(3) != nil {
		t.Errorf("StringAt() resolved the wrong entries")
	}

	cs := d.Find(0, DescriptorTypeCSInterface)
	if !bytes.Equal(cs, []byte{5, DescriptorTypeCSInterface, 0x00, 0x10, 0x01}) {
		t.Errorf("Find(0, CS_INTERFACE) = % X", cs)
	}
	if got := d.Find(1, DescriptorTypeCSInterface); got != nil {
		t.Errorf("Find(1, CS_INTERFACE) = % X, want nil", got)
	}

	eps := d.Endpoints()
	if len(eps) != 3 {
		t.Fatalf("Endpoints() len = %d, want 3", len(eps))
	}
	if eps[0].EndpointAddress != 0x81 || eps[0].MaxPacketSize != 8 {
		t.Errorf("Endpoints()[0] = %+v", eps[0])
	}

	truncated := *d
	truncated.Configuration = d.Configuration[:len(d.Configuration)-1]
	if err := truncated.Validate(); !errors.Is(err, pkg.ErrDescriptorTooShort) {
		t.Errorf("Validate(truncated) error = %v", err)
	}
}

func TestDescriptorsEachStopsOnMalformed(t *testing.T) {
	d := &Descriptors{Configuration: []byte{9, 2, 12, 0, 0, 1, 0, 0x80, 50, 0, 4, 0}}
	count := 0
	d.Each(func(uint8, []byte) bool {
		count++
		return true
	})
	if count != 1 {
		t.Errorf("Each visited %d descriptors, want 1", count)
	}
}

func TestParseStringDescriptor(t *testing.T) {
	for _, s := range []string{"", "wch.cn", "Keyboard & Mouse", "µ"} {
		got, err := ParseStringDescriptor(StringDescriptor(s))
		if err != nil || got != s {
			t.Errorf("ParseStringDescriptor(%q) = %q, %v", s, got, err)
		}
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, pkg.ErrDescriptorTooShort},
		{"truncated", []byte{6, DescriptorTypeString, 'a', 0}, pkg.ErrDescriptorTooShort},
		{"wrong type", []byte{4, DescriptorTypeDevice, 'a', 0}, pkg.ErrDescriptorTypeMismatch},
	}
	for _, tt := range tests {
		if _, err := ParseStringDescriptor(tt.data); !errors.Is(err, tt.want) {
			t.Errorf("%s: error = %v, want %v", tt.name, err, tt.want)
		}
	}
}
