// Package device implements the control-transfer engine of a USB full-speed
// device controller.
//
// The engine talks to hardware through the register-level
// [hal.Controller] interface and is driven entirely by the controller
// interrupt: wire [Engine.HandleInterrupt] to the interrupt line and every
// SETUP, IN and OUT token, bus reset and suspend event is serviced from
// there. The interrupt path never blocks.
//
// # Control Transfers
//
// A SETUP packet is decoded into a [SetupPacket] and classified as a
// standard, class or vendor request. Standard requests are answered by the
// engine from the [Descriptors] set; class requests and class descriptors
// (such as a HID report descriptor) go to the installed [ClassHandler];
// vendor requests go to the [VendorHandler] or receive an empty data stage.
// Any request that cannot be served stalls endpoint 0 in both directions
// until the next SETUP.
//
// IN data stages stream through a [Cursor] in 64-byte packets, clamped to
// the host's wLength. SET_ADDRESS takes effect only after its status stage
// completes.
//
// # Data Endpoints
//
// The endpoint table is derived from the endpoint descriptors of the
// configuration. [Engine.Upload] stages one packet on an IN endpoint and
// returns [pkg.ErrNotReady] until the host has collected it. OUT packets are
// handed to an [EndpointOutHandler]; returning false NAKs the endpoint until
// [Engine.ResumeOut].
//
// # Example
//
//	eng := device.NewEngine(ctrl, desc, device.WithClass(handler))
//	ctrl.Attach(eng.HandleInterrupt)
//	eng.Init()
//
//	for eng.Upload(1, report) != nil {
//	}
//
// A simulated controller and host for tests live in
// [github.com/ch643/usbfsd/device/hal/sim].
package device
