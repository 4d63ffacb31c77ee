// Package hal defines the register-level Hardware Abstraction Layer for the
// USBFS device controller.
//
// The controller is driven entirely through named registers: global control,
// interrupt enable/flag/status, device address, endpoint mode, and a block of
// DMA/length/control registers per endpoint. The [Controller] interface
// exposes exactly that surface plus the few collaborators the engine needs
// (DMA buffer binding, the interrupt line, the data-line pull-ups and a
// busy-wait delay).
//
// # Design Principles
//
//   - Typed: registers are [Register] values with datasheet names, bit masks
//     are named constants
//   - Minimal: no protocol knowledge lives here
//   - Substitutable: silicon and the software register bank in
//     [github.com/ch643/usbfsd/device/hal/sim] satisfy the same interface
//
// # Read-Modify-Write
//
// Most register updates replace one field and keep the rest. [Set], [Clear],
// [Modify] and [Toggle] express those updates against any Controller:
//
//	hal.Modify(c, hal.EndpointCtrl(0), hal.UEPTResMask|hal.UEPTTog, hal.UEPTTog|hal.UEPTResACK)
//	hal.Toggle(c, hal.EndpointCtrl(2), hal.UEPRTog)
//
// # Endpoint Control Fields
//
// UEPn_CTRL_H carries two independent halves: the transmit (IN) response and
// toggle, and the receive (OUT) response and toggle. [SetTxResponse] and
// [SetRxResponse] touch only their own half.
package hal
