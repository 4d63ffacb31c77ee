package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ch643/usbfsd/device/hal"
	"github.com/ch643/usbfsd/pkg"
)

func TestGetConfigurationDescriptor(t *testing.T) {
	r := newRig(t)
	cfg := r.eng.Descriptors().Configuration

	head, err := r.host.ControlIn(GetDescriptor(DescriptorTypeConfiguration, 0, 0, ConfigurationDescriptorSize).Bytes())
	require.NoError(t, err)
	assert.Equal(t, cfg[:ConfigurationDescriptorSize], head)

	full, err := r.host.ControlIn(GetDescriptor(DescriptorTypeConfiguration, 0, 0, 255).Bytes())
	require.NoError(t, err)
	assert.Equal(t, cfg, full)
}

func TestSetConfiguration(t *testing.T) {
	r := newRig(t)
	get := func() []byte {
		data, err := r.host.ControlIn(GetConfiguration().Bytes())
		require.NoError(t, err)
		return data
	}

	assert.Equal(t, []byte{0}, get())
	assert.False(t, r.eng.State().Enumerated)

	require.NoError(t, r.host.ControlOut(SetConfiguration(1).Bytes(), nil))
	assert.Equal(t, []byte{1}, get())
	assert.True(t, r.eng.State().Enumerated)
	assert.Equal(t, []uint8{1}, r.class.configured)

	err := r.host.ControlOut(SetConfiguration(2).Bytes(), nil)
	assert.ErrorIs(t, err, pkg.ErrStall)
	assert.Equal(t, []byte{1}, get())

	require.NoError(t, r.host.ControlOut(SetConfiguration(0).Bytes(), nil))
	assert.Equal(t, []byte{0}, get())
	assert.Equal(t, []uint8{1, 0}, r.class.configured)
}

func TestRemoteWakeupFeature(t *testing.T) {
	r := newRig(t)
	status := func() []byte {
		data, err := r.host.ControlIn(GetStatus(RequestRecipientDevice, 0).Bytes())
		require.NoError(t, err)
		return data
	}

	assert.Equal(t, []byte{0, 0}, status())

	require.NoError(t, r.host.ControlOut(SetFeature(RequestRecipientDevice, FeatureDeviceRemoteWakeup, 0).Bytes(), nil))
	assert.Equal(t, []byte{StatusRemoteWakeup, 0}, status())
	assert.True(t, r.eng.State().RemoteWakeupArmed())

	require.NoError(t, r.host.ControlOut(ClearFeature(RequestRecipientDevice, FeatureDeviceRemoteWakeup, 0).Bytes(), nil))
	assert.Equal(t, []byte{0, 0}, status())

	err := r.host.ControlOut(SetFeature(RequestRecipientDevice, FeatureTestMode, 0).Bytes(), nil)
	assert.ErrorIs(t, err, pkg.ErrStall)
	err = r.host.ControlOut(ClearFeature(RequestRecipientDevice, FeatureTestMode, 0).Bytes(), nil)
	assert.ErrorIs(t, err, pkg.ErrStall)
}

func TestRemoteWakeupNotAdvertised(t *testing.T) {
	r := newRigWith(t, testDescriptors(0))
	err := r.host.ControlOut(SetFeature(RequestRecipientDevice, FeatureDeviceRemoteWakeup, 0).Bytes(), nil)
	assert.ErrorIs(t, err, pkg.ErrStall)
	assert.False(t, r.eng.State().RemoteWakeupArmed())
}

func TestEndpointHalt(t *testing.T) {
	r := newRig(t)
	r.enumerate()
	epStatus := func(addr uint16) []byte {
		data, err := r.host.ControlIn(GetStatus(RequestRecipientEndpoint, addr).Bytes())
		require.NoError(t, err)
		return data
	}

	t.Run("IN", func(t *testing.T) {
		require.NoError(t, r.eng.Upload(1, []byte{1}))
		_, _, err := r.host.In(1)
		require.NoError(t, err)
		require.NotZero(t, r.ctrl.Read(hal.EndpointCtrl(1))&hal.UEPTTog)

		require.NoError(t, r.host.ControlOut(SetFeature(RequestRecipientEndpoint, FeatureEndpointHalt, 0x81).Bytes(), nil))
		assert.Equal(t, []byte{StatusEndpointHalt, 0}, epStatus(0x81))
		_, _, err = r.host.In(1)
		assert.ErrorIs(t, err, pkg.ErrStall)

		require.NoError(t, r.host.ControlOut(ClearFeature(RequestRecipientEndpoint, FeatureEndpointHalt, 0x81).Bytes(), nil))
		assert.Equal(t, []byte{0, 0}, epStatus(0x81))
		assert.Equal(t, uint32(hal.UEPTResNAK), r.ctrl.Read(hal.EndpointCtrl(1)), "DATA0 and NAK after clear")
		assert.False(t, r.eng.Busy(1))
	})

	t.Run("OUT", func(t *testing.T) {
		require.NoError(t, r.host.Out(2, []byte{1}, false))
		require.NotZero(t, r.ctrl.Read(hal.EndpointCtrl(2))&hal.UEPRTog)

		require.NoError(t, r.host.ControlOut(SetFeature(RequestRecipientEndpoint, FeatureEndpointHalt, 0x02).Bytes(), nil))
		assert.Equal(t, []byte{StatusEndpointHalt, 0}, epStatus(0x02))
		assert.ErrorIs(t, r.host.Out(2, []byte{2}, true), pkg.ErrStall)

		require.NoError(t, r.host.ControlOut(ClearFeature(RequestRecipientEndpoint, FeatureEndpointHalt, 0x02).Bytes(), nil))
		assert.Equal(t, uint32(hal.UEPRResACK), r.ctrl.Read(hal.EndpointCtrl(2)))
		require.NoError(t, r.host.Out(2, []byte{3}, false))
		assert.Equal(t, [][]byte{{1}, {3}}, r.class.outs[2])
	})

	t.Run("held OUT stays held", func(t *testing.T) {
		r.class.accept = false
		require.NoError(t, r.host.Out(2, []byte{4}, true))
		require.NoError(t, r.host.ControlOut(ClearFeature(RequestRecipientEndpoint, FeatureEndpointHalt, 0x02).Bytes(), nil))
		assert.Equal(t, uint32(hal.UEPRResNAK), hal.RxResponse(r.ctrl, 2))
		r.class.accept = true
		require.NoError(t, r.eng.ResumeOut(2))
	})
}

func TestInvalidStatusRecipients(t *testing.T) {
	tests := []struct {
		name  string
		setup SetupPacket
	}{
		{"interface", GetStatus(RequestRecipientInterface, 0)},
		{"other", GetStatus(RequestRecipientOther, 0)},
		{"control endpoint", GetStatus(RequestRecipientEndpoint, 0x80)},
		{"unconfigured endpoint", GetStatus(RequestRecipientEndpoint, 0x85)},
		{"wrong direction", GetStatus(RequestRecipientEndpoint, 0x01)},
		{"halt on wrong direction", SetFeature(RequestRecipientEndpoint, FeatureEndpointHalt, 0x82)},
		{"interface feature", ClearFeature(RequestRecipientInterface, 0, 0)},
		{"endpoint wakeup", SetFeature(RequestRecipientEndpoint, FeatureDeviceRemoteWakeup, 0x81)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t)
			b := tt.setup.Bytes()
			var err error
			if tt.setup.IsDeviceToHost() {
				_, err = r.host.ControlIn(b)
			} else {
				err = r.host.ControlOut(b, nil)
			}
			assert.ErrorIs(t, err, pkg.ErrStall)
		})
	}
}

func TestInterfaceRequests(t *testing.T) {
	r := newRig(t)
	r.enumerate()

	alt, err := r.host.ControlIn(GetInterface(1).Bytes())
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, alt)
	assert.NoError(t, r.host.ControlOut(SetInterface(1, 0).Bytes(), nil))
}

func TestUnsupportedStandardRequests(t *testing.T) {
	for _, req := range []uint8{RequestSetDescriptor, RequestSynchFrame} {
		r := newRig(t)
		setup := SetupPacket{Request: req, Value: 0x0100, Length: 0}
		assert.ErrorIs(t, r.host.ControlOut(setup.Bytes(), nil), pkg.ErrStall, setup.String())
	}
}
