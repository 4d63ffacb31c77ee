package device

import (
	"github.com/ch643/usbfsd/device/hal"
	"github.com/ch643/usbfsd/pkg"
)

// Device status bits returned by GET_STATUS (USB 2.0 Figure 9-4).
const (
	StatusSelfPowered  = 0x01
	StatusRemoteWakeup = 0x02
)

// Endpoint status bits returned by GET_STATUS (USB 2.0 Figure 9-6).
const (
	StatusEndpointHalt = 0x01
)

// standard resolves a standard request. Data returned for IN requests is
// always freshly allocated or read-only descriptor memory.
func (e *Engine) standard(setup *SetupPacket) ([]byte, error) {
	switch setup.Request {
	case RequestGetDescriptor:
		return e.getDescriptor(setup)
	case RequestSetAddress:
		e.pendingAddr = uint8(setup.Value) & hal.UDAAddress
		e.addrPending = true
		return nil, nil
	case RequestGetConfiguration:
		return []byte{e.State().Configuration}, nil
	case RequestSetConfiguration:
		return nil, e.setConfiguration(uint8(setup.Value))
	case RequestGetInterface:
		return []byte{0}, nil
	case RequestSetInterface:
		return nil, nil
	case RequestClearFeature:
		return nil, e.clearFeature(setup)
	case RequestSetFeature:
		return nil, e.setFeature(setup)
	case RequestGetStatus:
		return e.getStatus(setup)
	default:
		// SET_DESCRIPTOR and SYNCH_FRAME are not supported.
		return nil, pkg.ErrNotSupported
	}
}

func (e *Engine) getDescriptor(setup *SetupPacket) ([]byte, error) {
	switch setup.DescriptorType() {
	case DescriptorTypeDevice:
		return e.desc.Device, nil
	case DescriptorTypeConfiguration:
		return e.desc.Configuration, nil
	case DescriptorTypeString:
		if s := e.desc.StringAt(setup.DescriptorIndex()); s != nil {
			return s, nil
		}
		return nil, pkg.ErrInvalidRequest
	}
	if e.class != nil {
		if d, ok := e.class.Descriptor(setup); ok {
			return d, nil
		}
	}
	return nil, pkg.ErrInvalidRequest
}

func (e *Engine) setConfiguration(value uint8) error {
	if value != 0 && value != e.desc.ConfigurationValue() {
		return pkg.ErrInvalidRequest
	}
	e.mu.Lock()
	e.state.Configuration = value
	e.state.Enumerated = true
	e.mu.Unlock()

	pkg.LogDebug(pkg.ComponentEngine, "configuration set", "value", value)
	if h, ok := e.class.(ConfigHandler); ok {
		h.Configured(value)
	}
	return nil
}

func (e *Engine) clearFeature(setup *SetupPacket) error {
	switch setup.Recipient() {
	case RequestRecipientDevice:
		if setup.Value != FeatureDeviceRemoteWakeup {
			return pkg.ErrInvalidRequest
		}
		e.mu.Lock()
		e.state.Sleep &^= SleepRemoteWakeup
		e.mu.Unlock()
		return nil
	case RequestRecipientEndpoint:
		if setup.Value != FeatureEndpointHalt {
			return pkg.ErrInvalidRequest
		}
		return e.clearHalt(setup.EndpointAddress())
	default:
		return pkg.ErrInvalidRequest
	}
}

func (e *Engine) setFeature(setup *SetupPacket) error {
	switch setup.Recipient() {
	case RequestRecipientDevice:
		if setup.Value != FeatureDeviceRemoteWakeup ||
			e.desc.ConfigurationAttributes()&ConfigAttrRemoteWakeup == 0 {
			return pkg.ErrInvalidRequest
		}
		e.mu.Lock()
		e.state.Sleep |= SleepRemoteWakeup
		e.mu.Unlock()
		return nil
	case RequestRecipientEndpoint:
		if setup.Value != FeatureEndpointHalt {
			return pkg.ErrInvalidRequest
		}
		return e.setHalt(setup.EndpointAddress())
	default:
		return pkg.ErrInvalidRequest
	}
}

func (e *Engine) getStatus(setup *SetupPacket) ([]byte, error) {
	status := []byte{0, 0}
	switch setup.Recipient() {
	case RequestRecipientDevice:
		if e.State().RemoteWakeupArmed() {
			status[0] = StatusRemoteWakeup
		}
	case RequestRecipientEndpoint:
		halted, err := e.halted(setup.EndpointAddress())
		if err != nil {
			return nil, err
		}
		if halted {
			status[0] = StatusEndpointHalt
		}
	default:
		return nil, pkg.ErrInvalidRequest
	}
	return status, nil
}
