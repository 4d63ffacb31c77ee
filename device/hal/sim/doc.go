// Package sim implements a software USBFS controller for tests and the
// simulator CLI.
//
// [Controller] is a register bank satisfying [hal.Controller]. It keeps the
// hardware semantics the engine relies on: INT_FG is write-1-to-clear, the
// endpoint DMA buffers are shared with the caller, and the interrupt line only
// fires while it is enabled and the flag is unmasked in INT_EN. Every write,
// pull-up change and delay is recorded in a trace.
//
// [Host] plays the role of the USB host and the serial interface engine. It
// turns SETUP/IN/OUT tokens into register updates, raises the matching
// interrupt flags and runs the attached interrupt handler synchronously, the
// way silicon would run the ISR before accepting the next token.
//
// # Usage
//
//	ctrl := sim.New()
//	eng := device.NewEngine(ctrl, desc)
//	ctrl.Attach(eng.HandleInterrupt)
//	eng.Init()
//
//	host := sim.NewHost(ctrl)
//	host.BusReset()
//	data, err := host.ControlIn(device.GetDescriptor(device.DescriptorTypeDevice, 0, 0, 18).Bytes())
//
// # Endpoint Buffers
//
// An endpoint with both directions enabled in its mode register uses the
// first 64 bytes of its buffer for OUT data and the next 64 bytes for IN
// data, matching the controller's dual-buffer layout.
package sim
