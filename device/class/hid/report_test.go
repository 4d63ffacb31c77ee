package hid

import (
	"bytes"
	"testing"
)

func TestKeyboardReportDescriptor(t *testing.T) {
	// HID 1.11 Appendix B.1 boot keyboard.
	want := []byte{
		0x05, 0x01, 0x09, 0x06, 0xA1, 0x01, 0x05, 0x07,
		0x19, 0xE0, 0x29, 0xE7, 0x15, 0x00, 0x25, 0x01,
		0x75, 0x01, 0x95, 0x08, 0x81, 0x02, 0x95, 0x01,
		0x75, 0x08, 0x81, 0x01, 0x95, 0x05, 0x75, 0x01,
		0x05, 0x08, 0x19, 0x01, 0x29, 0x05, 0x91, 0x02,
		0x95, 0x01, 0x75, 0x03, 0x91, 0x01, 0x95, 0x06,
		0x75, 0x08, 0x15, 0x00, 0x25, 0x65, 0x05, 0x07,
		0x19, 0x00, 0x29, 0x65, 0x81, 0x00, 0xC0,
	}
	if got := KeyboardReportDescriptor(); !bytes.Equal(got, want) {
		t.Errorf("KeyboardReportDescriptor() =\n% X\nwant\n% X", got, want)
	}
}

func TestMouseReportDescriptor(t *testing.T) {
	want := []byte{
		0x05, 0x01, 0x09, 0x02, 0xA1, 0x01, 0x09, 0x01,
		0xA1, 0x00, 0x05, 0x09, 0x19, 0x01, 0x29, 0x03,
		0x15, 0x00, 0x25, 0x01, 0x95, 0x03, 0x75, 0x01,
		0x81, 0x02, 0x95, 0x01, 0x75, 0x05, 0x81, 0x01,
		0x05, 0x01, 0x09, 0x30, 0x09, 0x31, 0x09, 0x38,
		0x15, 0x81, 0x25, 0x7F, 0x75, 0x08, 0x95, 0x03,
		0x81, 0x06, 0xC0, 0xC0,
	}
	if got := MouseReportDescriptor(); !bytes.Equal(got, want) {
		t.Errorf("MouseReportDescriptor() =\n% X\nwant\n% X", got, want)
	}
}

func TestReportBuilderItemSizes(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *ReportBuilder)
		want  []byte
	}{
		{"zero", func(b *ReportBuilder) { b.Collection(CollectionPhysical) }, []byte{0xA1, 0x00}},
		{"unsigned byte", func(b *ReportBuilder) { b.UsageMinimum(0xE0) }, []byte{0x19, 0xE0}},
		{"unsigned word", func(b *ReportBuilder) { b.UsagePage(0xFF00) }, []byte{0x06, 0x00, 0xFF}},
		{"signed byte", func(b *ReportBuilder) { b.LogicalMinimum(-127) }, []byte{0x15, 0x81}},
		{"signed word", func(b *ReportBuilder) { b.LogicalMaximum(255) }, []byte{0x26, 0xFF, 0x00}},
		{"signed negative word", func(b *ReportBuilder) { b.LogicalMinimum(-1000) }, []byte{0x16, 0x18, 0xFC}},
		{"signed dword", func(b *ReportBuilder) { b.LogicalMaximum(100000) }, []byte{0x27, 0xA0, 0x86, 0x01, 0x00}},
		{"report id", func(b *ReportBuilder) { b.ReportID(2) }, []byte{0x85, 0x02}},
		{"feature", func(b *ReportBuilder) { b.Feature(Data | Variable) }, []byte{0xB1, 0x02}},
		{"end collection", func(b *ReportBuilder) { b.EndCollection() }, []byte{0xC0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b ReportBuilder
			tt.build(&b)
			if !bytes.Equal(b.Bytes(), tt.want) {
				t.Errorf("encoded % X, want % X", b.Bytes(), tt.want)
			}
		})
	}
}

func TestKeyboardReport(t *testing.T) {
	var r KeyboardReport
	for _, k := range []uint8{KeyA, KeyA + 1, KeyA + 2, KeyA + 3, KeyA + 4, KeyA + 5} {
		if !r.SetKey(k) {
			t.Fatalf("SetKey(0x%02X) = false", k)
		}
	}
	if r.SetKey(KeyZ) {
		t.Error("SetKey() accepted a seventh key")
	}
	if !r.SetKey(KeyA) {
		t.Error("SetKey() rejected a key already pressed")
	}

	r.ClearKey(KeyA + 1)
	want := [6]uint8{KeyA, KeyA + 2, KeyA + 3, KeyA + 4, KeyA + 5, 0}
	if r.Keys != want {
		t.Errorf("Keys = % X, want % X", r.Keys, want)
	}

	r.Modifiers = ModLeftShift
	var buf [KeyboardReportSize]byte
	if n := r.MarshalTo(buf[:]); n != KeyboardReportSize {
		t.Fatalf("MarshalTo() = %d", n)
	}
	if buf[0] != ModLeftShift || buf[2] != KeyA || buf[7] != 0 {
		t.Errorf("MarshalTo() = % X", buf)
	}
	if n := r.MarshalTo(buf[:4]); n != 0 {
		t.Errorf("MarshalTo(short) = %d, want 0", n)
	}

	r.Clear()
	if r != (KeyboardReport{}) {
		t.Errorf("Clear() left %+v", r)
	}
}

func TestMouseReport(t *testing.T) {
	r := MouseReport{Buttons: MouseButtonLeft, X: -1, Y: 10, Wheel: -127}
	var buf [MouseReportSize]byte
	r.MarshalTo(buf[:])
	if want := [4]byte{0x01, 0xFF, 0x0A, 0x81}; buf != want {
		t.Errorf("MarshalTo() = % X, want % X", buf, want)
	}
}

func TestKeyFor(t *testing.T) {
	tests := []struct {
		r   rune
		mod uint8
		key uint8
		ok  bool
	}{
		{'a', 0, KeyA, true},
		{'z', 0, KeyZ, true},
		{'Q', ModLeftShift, KeyA + 16, true},
		{'1', 0, Key1, true},
		{'9', 0, Key1 + 8, true},
		{'0', 0, Key0, true},
		{'!', ModLeftShift, Key1, true},
		{')', ModLeftShift, Key0, true},
		{' ', 0, KeySpace, true},
		{'\n', 0, KeyEnter, true},
		{'?', ModLeftShift, KeySlash, true},
		{'é', 0, 0, false},
	}

	for _, tt := range tests {
		mod, key, ok := KeyFor(tt.r)
		if mod != tt.mod || key != tt.key || ok != tt.ok {
			t.Errorf("KeyFor(%q) = (0x%02X, 0x%02X, %v), want (0x%02X, 0x%02X, %v)",
				tt.r, mod, key, ok, tt.mod, tt.key, tt.ok)
		}
	}
}

func TestType(t *testing.T) {
	reports, skipped := Type("Hié")
	if len(reports) != 4 {
		t.Fatalf("len(reports) = %d, want 4", len(reports))
	}
	if reports[0].Modifiers != ModLeftShift || reports[0].Keys[0] != KeyA+7 {
		t.Errorf("reports[0] = %+v", reports[0])
	}
	if reports[1] != (KeyboardReport{}) || reports[3] != (KeyboardReport{}) {
		t.Error("each press must be followed by a release")
	}
	if len(skipped) != 1 || skipped[0] != 'é' {
		t.Errorf("skipped = %q", skipped)
	}
}
