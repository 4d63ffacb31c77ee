package device

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ch643/usbfsd/device/hal"
	"github.com/ch643/usbfsd/device/hal/sim"
	"github.com/ch643/usbfsd/pkg"
)

func TestEndpointTable(t *testing.T) {
	var dev [DeviceDescriptorSize]byte
	(&DeviceDescriptor{MaxPacketSize0: MaxPacketSize0, NumConfigurations: 1}).MarshalTo(dev[:])
	desc := &Descriptors{Device: dev[:], Configuration: testConfig()}

	ctrl := sim.New()
	eng := NewEngine(ctrl, desc)
	eng.Init()

	assert.Equal(t, endpoint{in: true, inSize: 8, buf: eng.eps[1].buf}, eng.eps[1])
	assert.Len(t, eng.eps[1].buf, MaxPacketSize)
	assert.True(t, eng.eps[3].in && eng.eps[3].out)
	assert.Len(t, ctrl.Buffer(3), 2*MaxPacketSize, "EP3 carries both directions")
	assert.Equal(t, uint32(0x80|0x40), ctrl.Read(hal.UEP23Mod))
	assert.Equal(t, uint32(hal.UEPTResNAK|hal.UEPRResACK), ctrl.Read(hal.EndpointCtrl(3)))
	assert.Nil(t, ctrl.Buffer(2))
}

func TestUploadErrors(t *testing.T) {
	r := newRig(t)

	tests := []struct {
		name    string
		ep      uint8
		data    []byte
		wantErr error
	}{
		{"control endpoint", 0, []byte{1}, pkg.ErrInvalidEndpoint},
		{"OUT only", 2, []byte{1}, pkg.ErrInvalidEndpoint},
		{"unconfigured", 5, []byte{1}, pkg.ErrInvalidEndpoint},
		{"out of range", 9, []byte{1}, pkg.ErrInvalidEndpoint},
		{"larger than max packet", 1, make([]byte, 9), pkg.ErrBufferTooSmall},
		{"empty", 3, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.eng.Upload(tt.ep, tt.data)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUploadBusy(t *testing.T) {
	r := newRig(t)
	r.enumerate()
	first := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	require.NoError(t, r.eng.Upload(1, first))
	assert.True(t, r.eng.Busy(1))
	assert.Equal(t, uint32(hal.UEPTResACK), hal.TxResponse(r.ctrl, 1))

	buf := bytes.Clone(r.ctrl.Buffer(1))
	lenWrites := len(r.ctrl.Writes(hal.EndpointTxLen(1)))

	assert.ErrorIs(t, r.eng.Upload(1, []byte{9, 9}), pkg.ErrNotReady)
	assert.Equal(t, buf, r.ctrl.Buffer(1), "buffer changed by a rejected upload")
	assert.Len(t, r.ctrl.Writes(hal.EndpointTxLen(1)), lenWrites, "length changed by a rejected upload")
	assert.Equal(t, uint32(len(first)), r.ctrl.Read(hal.EndpointTxLen(1)))

	data, data1, err := r.host.In(1)
	require.NoError(t, err)
	assert.Equal(t, first, data)
	assert.False(t, data1)
	assert.False(t, r.eng.Busy(1))
	assert.Equal(t, uint32(hal.UEPTTog|hal.UEPTResNAK), r.ctrl.Read(hal.EndpointCtrl(1)))
	assert.Equal(t, []uint8{1}, r.class.ins)

	_, _, err = r.host.In(1)
	assert.ErrorIs(t, err, pkg.ErrNAK, "nothing staged")

	require.NoError(t, r.eng.Upload(1, []byte{0xAA}))
	data, data1, err = r.host.In(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA}, data)
	assert.True(t, data1)
}

func TestDualBufferEndpoint(t *testing.T) {
	var dev [DeviceDescriptorSize]byte
	(&DeviceDescriptor{MaxPacketSize0: MaxPacketSize0, NumConfigurations: 1}).MarshalTo(dev[:])
	desc := &Descriptors{Device: dev[:], Configuration: testConfig()}

	class := newFakeClass()
	ctrl := sim.New()
	eng := NewEngine(ctrl, desc, WithClass(class))
	ctrl.Attach(eng.HandleInterrupt)
	eng.Init()
	host := sim.NewHost(ctrl)

	out := bytes.Repeat([]byte{0x55}, MaxPacketSize)
	in := bytes.Repeat([]byte{0xAA}, MaxPacketSize)

	require.NoError(t, host.Out(3, out, false))
	require.NoError(t, eng.Upload(3, in))

	got, _, err := host.In(3)
	require.NoError(t, err)
	assert.Equal(t, in, got)
	require.Len(t, class.outs[3], 1)
	assert.Equal(t, out, class.outs[3][0])
	assert.Equal(t, out, ctrl.Buffer(3)[:MaxPacketSize])
}

func TestDataOut(t *testing.T) {
	r := newRig(t)
	r.enumerate()

	require.NoError(t, r.host.Out(2, []byte("abc"), false))
	require.NoError(t, r.host.Out(2, []byte("de"), true))
	assert.Equal(t, [][]byte{[]byte("abc"), []byte("de")}, r.class.outs[2])

	// A retransmission with the previous toggle is acknowledged but dropped.
	require.NoError(t, r.host.Out(2, []byte("de"), true))
	assert.Len(t, r.class.outs[2], 2)
}

func TestDataOutBackPressure(t *testing.T) {
	r := newRig(t)
	r.enumerate()
	r.class.accept = false

	require.NoError(t, r.host.Out(2, []byte{1}, false))
	assert.Equal(t, uint32(hal.UEPRResNAK), hal.RxResponse(r.ctrl, 2))
	assert.ErrorIs(t, r.host.Out(2, []byte{2}, true), pkg.ErrNAK)
	assert.Len(t, r.class.outs[2], 1)

	r.class.accept = true
	require.NoError(t, r.eng.ResumeOut(2))
	assert.Equal(t, uint32(hal.UEPRResACK), hal.RxResponse(r.ctrl, 2))
	require.NoError(t, r.host.Out(2, []byte{2}, true))
	assert.Equal(t, [][]byte{{1}, {2}}, r.class.outs[2])

	// Resuming an endpoint that is not held is a no-op.
	writes := len(r.ctrl.Writes(hal.EndpointCtrl(2)))
	require.NoError(t, r.eng.ResumeOut(2))
	assert.Len(t, r.ctrl.Writes(hal.EndpointCtrl(2)), writes)

	assert.ErrorIs(t, r.eng.ResumeOut(1), pkg.ErrInvalidEndpoint)
	assert.ErrorIs(t, r.eng.ResumeOut(0), pkg.ErrInvalidEndpoint)
}

func TestBusyOutOfRange(t *testing.T) {
	r := newRig(t)
	assert.False(t, r.eng.Busy(NumEndpoints))
	assert.False(t, r.eng.Busy(0))
}

func TestTransferTypeName(t *testing.T) {
	tests := []struct {
		attrs uint8
		want  string
	}{
		{EndpointTypeControl, "Control"},
		{EndpointTypeIsochronous, "Isochronous"},
		{EndpointTypeBulk, "Bulk"},
		{EndpointTypeInterrupt, "Interrupt"},
		{0x0D, "Isochronous"},
	}
	for _, tt := range tests {
		if got := TransferTypeName(tt.attrs); got != tt.want {
			t.Errorf("TransferTypeName(0x%02X) = %q, want %q", tt.attrs, got, tt.want)
		}
	}
	if got := DirectionName(0x81); got != "IN" {
		t.Errorf("DirectionName(0x81) = %q, want IN", got)
	}
	if got := DirectionName(0x02); got != "OUT" {
		t.Errorf("DirectionName(0x02) = %q, want OUT", got)
	}
}
