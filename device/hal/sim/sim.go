package sim

import (
	"fmt"
	"sync"
	"time"

	"github.com/ch643/usbfsd/device/hal"
	"github.com/ch643/usbfsd/pkg"
)

// EventKind classifies a trace entry.
type EventKind uint8

// Trace entry kinds.
const (
	EventWrite EventKind = iota // register write
	EventPull                   // pull-up change
	EventDelay                  // busy-wait
	EventIRQ                    // interrupt line change
)

// Event is one recorded interaction with the controller.
type Event struct {
	Kind  EventKind
	Reg   hal.Register
	Value uint32
	Line  hal.PullLine
	On    bool
	Delay time.Duration
}

func (e Event) String() string {
	switch e.Kind {
	case EventWrite:
		return fmt.Sprintf("%s <- 0x%02X", e.Reg, e.Value)
	case EventPull:
		return fmt.Sprintf("pull %s %t", e.Line, e.On)
	case EventDelay:
		return fmt.Sprintf("delay %s", e.Delay)
	default:
		return fmt.Sprintf("irq %t", e.On)
	}
}

// Controller is a simulated USBFS register bank.
type Controller struct {
	mu    sync.Mutex
	regs  [hal.NumRegisters]uint32
	bufs  [hal.NumEndpoints][]byte
	irq   bool
	pulls [2]bool
	trace []Event
	slept time.Duration
	isr   func()
}

// New returns a controller with every register cleared.
func New() *Controller {
	return &Controller{}
}

// Attach installs the interrupt service routine run when an enabled flag is
// raised.
func (c *Controller) Attach(isr func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isr = isr
}

// Read implements hal.Controller.
func (c *Controller) Read(r hal.Register) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs[r]
}

// Write implements hal.Controller. Writing INT_FG clears the bits set in v.
func (c *Controller) Write(r hal.Register, v uint32) {
	c.mu.Lock()
	if r == hal.IntFg {
		c.regs[r] &^= v
	} else {
		c.regs[r] = v
	}
	c.trace = append(c.trace, Event{Kind: EventWrite, Reg: r, Value: v})
	c.mu.Unlock()

	if pkg.Enabled(pkg.LevelTrace) {
		pkg.LogTrace(pkg.ComponentSim, "register write", "reg", r.String(), "value", fmt.Sprintf("0x%02X", v))
	}
}

// BindBuffer implements hal.Controller.
func (c *Controller) BindBuffer(n uint8, buf []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bufs[n&0x07] = buf
	c.regs[hal.EndpointDMA(n)] = uint32(len(buf))
}

// SetIRQ implements hal.Controller.
func (c *Controller) SetIRQ(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.irq = enabled
	c.trace = append(c.trace, Event{Kind: EventIRQ, On: enabled})
}

// SetPullUp implements hal.Controller.
func (c *Controller) SetPullUp(line hal.PullLine, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pulls[line&1] = on
	c.trace = append(c.trace, Event{Kind: EventPull, Line: line, On: on})
}

// Delay implements hal.Controller. The delay is recorded, not slept.
func (c *Controller) Delay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slept += d
	c.trace = append(c.trace, Event{Kind: EventDelay, Delay: d})
}

// IRQEnabled reports whether the interrupt line is enabled.
func (c *Controller) IRQEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.irq
}

// PullUp reports the state of a pull-up line.
func (c *Controller) PullUp(line hal.PullLine) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pulls[line&1]
}

// Elapsed returns the total delay requested so far.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slept
}

// Buffer returns the buffer bound to endpoint n.
func (c *Controller) Buffer(n uint8) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bufs[n&0x07]
}

// Trace returns a copy of the recorded events.
func (c *Controller) Trace() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.trace...)
}

// Writes returns the values written to r, oldest first.
func (c *Controller) Writes(r hal.Register) []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []uint32
	for _, e := range c.trace {
		if e.Kind == EventWrite && e.Reg == r {
			out = append(out, e.Value)
		}
	}
	return out
}

// ResetTrace discards the recorded events.
func (c *Controller) ResetTrace() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trace = c.trace[:0]
}

// poke updates a register from the hardware side, bypassing the trace and
// the write-1-to-clear rule.
func (c *Controller) poke(r hal.Register, v uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs[r] = v
}

// raise sets flag in INT_FG and runs the ISR if the line and the flag are
// enabled. The ISR runs without the bank lock held.
func (c *Controller) raise(flag uint32) {
	c.mu.Lock()
	c.regs[hal.IntFg] |= flag
	isr := c.isr
	fire := c.irq && c.regs[hal.IntEn]&flag != 0 && isr != nil
	c.mu.Unlock()

	if fire {
		isr()
	}
}

// Pending returns the interrupt flags not yet acknowledged.
func (c *Controller) Pending() uint32 {
	return c.Read(hal.IntFg)
}

// ioBuffers returns the OUT and IN regions of endpoint n's buffer.
func (c *Controller) ioBuffers(n uint8) (out, in []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := c.bufs[n&0x07]
	if n == 0 {
		return buf, buf
	}
	reg, both, ok := hal.ModeBits(n, true, true)
	if ok && c.regs[reg]&both == both && len(buf) >= 2*maxPacket {
		return buf[:maxPacket], buf[maxPacket:]
	}
	return buf, buf
}

var _ hal.Controller = (*Controller)(nil)
