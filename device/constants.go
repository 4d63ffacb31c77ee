package device

import (
	"fmt"
	"strings"

	"github.com/ch643/usbfsd/device/hal"
)

// Packet sizes at full speed.
const (
	// MaxPacketSize0 is the endpoint 0 packet size.
	MaxPacketSize0 = 64

	// MaxPacketSize is the largest data endpoint packet the controller
	// buffers in one direction.
	MaxPacketSize = 64
)

// NumEndpoints is the number of hardware endpoints, EP0 included.
const NumEndpoints = hal.NumEndpoints

// Sleep status bits.
const (
	SleepRemoteWakeup = 0x01 // Host armed remote wakeup
	SleepSuspended    = 0x02 // Bus suspend detected
)

// State is the device state owned by the engine. It is changed by
// SET_ADDRESS, SET_CONFIGURATION, the remote wakeup feature, bus reset and
// suspend.
type State struct {
	Address       uint8 // Assigned address, 0 until SET_ADDRESS completes
	Configuration uint8 // Selected configuration value, 0 when unconfigured
	Sleep         uint8 // SleepRemoteWakeup | SleepSuspended
	Enumerated    bool  // SET_CONFIGURATION has completed
}

// RemoteWakeupArmed reports whether the host enabled remote wakeup.
func (s State) RemoteWakeupArmed() bool { return s.Sleep&SleepRemoteWakeup != 0 }

// Suspended reports whether the bus is suspended.
func (s State) Suspended() bool { return s.Sleep&SleepSuspended != 0 }

// String returns a compact description of the state.
func (s State) String() string {
	var flags []string
	if s.Enumerated {
		flags = append(flags, "enumerated")
	}
	if s.RemoteWakeupArmed() {
		flags = append(flags, "wakeup")
	}
	if s.Suspended() {
		flags = append(flags, "suspended")
	}
	return fmt.Sprintf("addr=%d config=%d sleep=0x%02X [%s]",
		s.Address, s.Configuration, s.Sleep, strings.Join(flags, ","))
}
