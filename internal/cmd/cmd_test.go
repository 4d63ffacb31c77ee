package cmd

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ch643/usbfsd/internal/config"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noUSBIDs(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing.ids")
}

func TestEnumerateHID(t *testing.T) {
	var out bytes.Buffer
	e := &Enumerate{Function: FunctionHID, Address: 5, USBIDs: noUSBIDs(t)}
	require.NoError(t, e.Run(discard(), &config.Identity{}, &out))

	s := out.String()
	assert.Contains(t, s, "ID 1a86:fe07 QinHeng Electronics CH643 Keyboard & Mouse")
	assert.Contains(t, s, "wch.cn")
	assert.Contains(t, s, "0123456789")
	assert.Contains(t, s, "Configuration 1: 2 interfaces, attributes 0xa0, 100 mA")
	assert.Contains(t, s, "Interface 1: class 3 Human Interface Device")
	assert.Contains(t, s, "Endpoint 0x81 Interrupt IN, 8 bytes")
	assert.Contains(t, s, "Endpoint 0x82 Interrupt IN, 4 bytes")
	assert.NotContains(t, s, "SETUP")
}

func TestEnumerateCDCWithIdentity(t *testing.T) {
	var out bytes.Buffer
	id := &config.Identity{ProductID: "0x1234", Product: "Bench Port", MaxPower: 200, Wakeup: "default"}
	e := &Enumerate{Function: FunctionCDC, Address: 9, USBIDs: noUSBIDs(t), Trace: true}
	require.NoError(t, e.Run(discard(), id, &out))

	s := out.String()
	assert.Contains(t, s, "idProduct       0x1234")
	assert.Contains(t, s, "Bench Port")
	assert.Contains(t, s, "200 mA")
	assert.Contains(t, s, "class 2 Communications")
	assert.Contains(t, s, "class 10 CDC Data")
	assert.Contains(t, s, "Endpoint 0x02 Bulk OUT, 64 bytes")
	assert.Contains(t, s, "Descriptor 0x24")
	assert.Contains(t, s, "SETUP 9.0")
}

func TestEnumerateSequence(t *testing.T) {
	b, err := newBench(FunctionCDC, nil)
	require.NoError(t, err)
	defer b.close()

	r, err := enumerate(b, 7)
	require.NoError(t, err)
	assert.Equal(t, uint8(7), b.host.Address())
	assert.True(t, b.acm.IsConfigured())
	assert.Equal(t, "CH643 Virtual COM Port", r.strings[r.device.ProductIndex])
	assert.Equal(t, b.desc.Configuration, r.config.Configuration)
}

func TestBenchUnknownFunction(t *testing.T) {
	_, err := newBench("msc", nil)
	assert.Error(t, err)

	_, err = newBench(FunctionHID, &config.Identity{VendorID: "nope"})
	assert.Error(t, err)
}

const cdcScript = `function: cdc
steps:
  - op: configure
  - name: line coding
    op: control-in
    setup: {type: 0xA1, request: 0x21, length: 7}
    expect: 00 c2 01 00 00 00 08
  - name: dtr
    op: control-out
    setup: {type: 0x21, request: 0x22, value: 1}
  - name: encapsulated response
    op: control-in
    setup: {type: 0xA1, request: 0x01, length: 8}
    error: stall
  - op: out
    ep: 2
    text: hello
  - name: nothing to send
    op: in
    ep: 3
    error: nak
  - op: reset
  - name: after reset
    op: in
    ep: 3
    error: any
`

func TestReplayCDC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cdc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cdcScript), 0o644))

	var out bytes.Buffer
	r := &Replay{Script: path}
	require.NoError(t, r.Run(discard(), nil, &out))
	assert.Equal(t, "8 steps passed\n", out.String())
}

func TestReplayHID(t *testing.T) {
	script := `steps:
  - op: configure
  - name: arm wakeup
    op: control-out
    setup: {type: 0x00, request: 0x03, value: 1}
  - op: control-in
    setup: {type: 0x80, request: 0x00, length: 2}
    expect: "02 00"
  - name: interface status
    op: control-in
    setup: {type: 0x81, request: 0x00, length: 2}
    error: stall
  - op: in
    ep: 1
    error: nak
`
	s, err := ParseScript(strings.NewReader(script))
	require.NoError(t, err)
	assert.Equal(t, FunctionHID, s.Function)

	b, err := newBench(s.Function, nil)
	require.NoError(t, err)
	defer b.close()
	for i := range s.Steps {
		got, err := b.run(&s.Steps[i], s.Address)
		require.NoError(t, s.Steps[i].check(got, err), s.Steps[i].label(i))
	}

	// With remote wakeup disabled the device refuses to arm it.
	b, err = newBench(s.Function, &config.Identity{Wakeup: "off"})
	require.NoError(t, err)
	defer b.close()
	require.NoError(t, b.configure(5))
	arm := &s.Steps[1]
	_, err = b.run(arm, s.Address)
	assert.Error(t, arm.check(nil, err))
}

func TestReplayMismatch(t *testing.T) {
	script := `function: cdc
steps:
  - op: configure
  - name: line coding
    op: control-in
    setup: {type: 0xA1, request: 0x21, length: 7}
    expect: 80 25 00 00 00 00 08
`
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o644))

	err := (&Replay{Script: path}).Run(discard(), nil, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 2 (line coding)")
	assert.Contains(t, err.Error(), "data mismatch")
}

func TestParseScriptErrors(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"unknown op", "steps:\n  - op: bulk\n"},
		{"missing setup", "steps:\n  - op: control-in\n"},
		{"bad hex", "steps:\n  - op: out\n    ep: 2\n    data: zz\n"},
		{"unknown field", "steps:\n  - op: sof\n    timeout: 3\n"},
		{"unknown error", "steps:\n  - op: sof\n    error: timeout\n"},
		{"endpoint range", "steps:\n  - op: in\n    ep: 16\n"},
		{"missing endpoint", "steps:\n  - op: out\n    ep: 9\n    text: x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScript(strings.NewReader(tt.script))
			assert.Error(t, err)
		})
	}
}

func TestHexData(t *testing.T) {
	s, err := ParseScript(strings.NewReader("steps:\n  - op: out\n    ep: 2\n    data: \"de:ad-be ef\"\n"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, s.Steps[0].payload())
	assert.Equal(t, uint8(5), s.Address)
}

func TestType(t *testing.T) {
	var out bytes.Buffer
	cmd := &Type{Text: "Hi€", Address: 5, Reports: true}
	require.NoError(t, cmd.Run(discard(), nil, &out))

	s := out.String()
	assert.Contains(t, s, "02 00 0b 00 00 00 00 00")
	assert.Contains(t, s, "00 00 0c 00 00 00 00 00")
	assert.Equal(t, 4, strings.Count(s, "DATA"))
	assert.Contains(t, s, "typed 2 characters, skipped 1")
}

func TestSerialLoopback(t *testing.T) {
	text := strings.Repeat("0123456789abcdef", 200)
	var out bytes.Buffer
	cmd := &Serial{Text: text, Address: 5, Baud: 9600, DataBits: 7, Parity: "E", Stop: "2"}
	require.NoError(t, cmd.Run(discard(), nil, &out))

	s := out.String()
	assert.Contains(t, s, "line coding 9600 7E2")
	assert.Contains(t, s, `echo "`+text+`"`)
}

func TestSerialLineCoding(t *testing.T) {
	b, err := newBench(FunctionCDC, nil)
	require.NoError(t, err)
	defer b.close()

	cmd := &Serial{Baud: 57600, DataBits: 8, Parity: "O", Stop: "1.5"}
	lc, err := b.open(5, cmd.LineCoding())
	require.NoError(t, err)
	assert.Equal(t, cmd.LineCoding(), lc)
	assert.Equal(t, lc, b.acm.LineCoding())
	assert.True(t, b.acm.DTR())
	assert.False(t, b.acm.RTS())

	assert.Error(t, (&Serial{DataBits: 9}).Validate())
}

func TestDumpConfig(t *testing.T) {
	id := &config.Identity{VendorID: "0x1234", Serial: "SN1", Wakeup: "default"}

	var out bytes.Buffer
	require.NoError(t, (&DumpConfig{Format: config.FormatTOML}).Run(discard(), id, &out))
	assert.Contains(t, out.String(), `vid = "0x1234"`)
	assert.Contains(t, out.String(), `serial = "SN1"`)

	out.Reset()
	require.NoError(t, (&DumpConfig{Format: config.FormatYAML}).Run(discard(), id, &out))
	assert.Contains(t, out.String(), "vid: \"0x1234\"")

	bad := &config.Identity{MaxPower: 900}
	assert.Error(t, (&DumpConfig{Format: config.FormatJSON}).Run(discard(), bad, io.Discard))
}

func TestBenchConfigure(t *testing.T) {
	b, err := newBench(FunctionHID, nil)
	require.NoError(t, err)
	defer b.close()

	require.NoError(t, b.configure(12))
	assert.Equal(t, uint8(12), b.host.Address())
	assert.Equal(t, uint8(1), b.eng.State().Configuration)
	assert.True(t, b.hid.IsConfigured())

	b.busReset()
	assert.Equal(t, uint8(0), b.host.Address())
	assert.False(t, b.hid.IsConfigured())
	assert.Equal(t, "CH643 Keyboard & Mouse", b.identity.Product)
}
