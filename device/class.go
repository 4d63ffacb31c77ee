package device

// ClassHandler resolves class requests and class descriptors for the
// interfaces of a device function.
type ClassHandler interface {
	// Setup resolves a class request. For a device-to-host request the
	// returned bytes are the data stage; the engine clamps them to wLength.
	// An error stalls endpoint 0.
	Setup(setup *SetupPacket) ([]byte, error)

	// ControlOut receives one packet of a host-to-device data stage. An
	// error stalls endpoint 0.
	ControlOut(setup *SetupPacket, data []byte) error

	// Descriptor returns a class descriptor requested through a standard
	// GET_DESCRIPTOR, such as the HID report descriptor of an interface.
	Descriptor(setup *SetupPacket) ([]byte, bool)

	// Reset restores power-on state after a bus reset.
	Reset()
}

// EndpointInHandler is implemented by class handlers that want to know when
// a data endpoint finished transmitting.
type EndpointInHandler interface {
	EndpointIn(ep uint8)
}

// EndpointOutHandler is implemented by class handlers that consume data
// endpoint OUT packets. data is only valid during the call. Returning false
// applies back-pressure: the endpoint NAKs until Engine.ResumeOut.
type EndpointOutHandler interface {
	EndpointOut(ep uint8, data []byte) bool
}

// ConfigHandler is implemented by class handlers that react to
// SET_CONFIGURATION.
type ConfigHandler interface {
	Configured(value uint8)
}

// VendorHandler resolves vendor requests. Without one, vendor requests are
// accepted with an empty data stage.
type VendorHandler interface {
	Vendor(setup *SetupPacket) ([]byte, error)
	VendorOut(setup *SetupPacket, data []byte) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithClass installs the class handler.
func WithClass(h ClassHandler) Option {
	return func(e *Engine) { e.class = h }
}

// WithVendor installs the vendor request handler.
func WithVendor(h VendorHandler) Option {
	return func(e *Engine) { e.vendor = h }
}

// WithSleepHook installs a function run from the interrupt when the bus
// suspends while remote wakeup is armed.
func WithSleepHook(fn func()) Option {
	return func(e *Engine) { e.sleepHook = fn }
}
