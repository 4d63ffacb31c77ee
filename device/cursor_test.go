package device

import (
	"bytes"
	"testing"
)

func TestCursorClamp(t *testing.T) {
	tests := []struct {
		name      string
		src       int
		requested uint16
		packets   []int
	}{
		{"request shorter than source", 18, 8, []int{8, 0}},
		{"request longer than source", 18, 255, []int{18, 0}},
		{"multi packet", 150, 255, []int{64, 64, 22, 0}},
		{"exact multiple", 128, 255, []int{64, 64, 0}},
		{"empty source", 0, 64, []int{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := make([]byte, tt.src)
			for i := range src {
				src[i] = byte(i)
			}
			var c Cursor
			c.Load(src, tt.requested)
			if !c.Active() {
				t.Fatal("Active() = false after Load")
			}

			var got []byte
			var pkt [MaxPacketSize0]byte
			for i, want := range tt.packets {
				n := c.Next(pkt[:])
				if n != want {
					t.Fatalf("packet %d len = %d, want %d", i, n, want)
				}
				got = append(got, pkt[:n]...)
			}
			if c.Remaining() != 0 {
				t.Errorf("Remaining() = %d, want 0", c.Remaining())
			}
			wantLen := min(tt.src, int(tt.requested))
			if !bytes.Equal(got, src[:wantLen]) {
				t.Errorf("streamed %d bytes, want the first %d of the source", len(got), wantLen)
			}
		})
	}
}

func TestCursorExpect(t *testing.T) {
	var c Cursor
	c.Expect(7)
	if c.Active() {
		t.Error("Active() = true for an OUT stage")
	}
	c.Consume(4)
	if c.Remaining() != 3 {
		t.Errorf("Remaining() = %d, want 3", c.Remaining())
	}
	c.Consume(10)
	if c.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", c.Remaining())
	}

	c.Load([]byte{1}, 1)
	c.Reset()
	if c.Active() || c.Remaining() != 0 {
		t.Error("Reset() left the cursor loaded")
	}
}
