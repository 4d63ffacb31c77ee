package device

// Cursor tracks the data stage of the current control transfer.
//
// For a device-to-host transfer it holds the response bytes and streams them
// one packet at a time. For a host-to-device transfer it only counts the
// bytes still expected from the host.
type Cursor struct {
	src       []byte
	remaining uint16
}

// Load starts an IN data stage over src. The transfer length is clamped to
// len(src) and then to the requested length.
func (c *Cursor) Load(src []byte, requested uint16) {
	n := requested
	if len(src) < int(n) {
		n = uint16(len(src))
	}
	c.src = src[:n:n]
	if c.src == nil {
		c.src = []byte{}
	}
	c.remaining = n
}

// Expect starts an OUT data stage of n bytes.
func (c *Cursor) Expect(n uint16) {
	c.src = nil
	c.remaining = n
}

// Next copies the next packet into dst and returns its length. The length
// is zero once the source is exhausted.
func (c *Cursor) Next(dst []byte) int {
	n := min(int(c.remaining), len(dst), len(c.src))
	copy(dst, c.src[:n])
	c.src = c.src[n:]
	c.remaining -= uint16(n)
	return n
}

// Consume records n bytes received during an OUT data stage.
func (c *Cursor) Consume(n int) {
	if n >= int(c.remaining) {
		c.remaining = 0
		return
	}
	c.remaining -= uint16(n)
}

// Remaining returns the bytes left in the data stage.
func (c *Cursor) Remaining() uint16 { return c.remaining }

// Active reports whether an IN source is loaded.
func (c *Cursor) Active() bool { return c.src != nil }

// Reset discards the cursor.
func (c *Cursor) Reset() {
	c.src = nil
	c.remaining = 0
}
