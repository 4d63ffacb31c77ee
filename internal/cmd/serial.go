package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ch643/usbfsd/device"
	"github.com/ch643/usbfsd/device/class/cdc"
	"github.com/ch643/usbfsd/internal/config"
	"github.com/ch643/usbfsd/pkg"
)

// Serial enumerates the virtual COM port, opens it with the given line
// coding and runs text through a loopback: the host writes on the bulk OUT
// endpoint, the device echoes what it reads and the host collects the echo
// from the bulk IN endpoint.
type Serial struct {
	Text     string `arg:"" help:"Text the host sends"`
	Address  uint8  `help:"Address assigned by SET_ADDRESS" default:"5"`
	Baud     uint32 `help:"Baud rate" default:"115200" short:"b"`
	DataBits uint8  `name:"data-bits" help:"Data bits: 5, 6, 7, 8 or 16" default:"8"`
	Parity   string `help:"Parity: N, O, E, M or S" enum:"N,O,E,M,S" default:"N"`
	Stop     string `help:"Stop bits" enum:"1,1.5,2" default:"1"`
}

var parities = map[string]uint8{
	"N": cdc.ParityNone,
	"O": cdc.ParityOdd,
	"E": cdc.ParityEven,
	"M": cdc.ParityMark,
	"S": cdc.ParitySpace,
}

var stopBits = map[string]uint8{
	"1":   cdc.StopBits1,
	"1.5": cdc.StopBits1_5,
	"2":   cdc.StopBits2,
}

// LineCoding returns the line coding selected by the flags.
func (s *Serial) LineCoding() cdc.LineCoding {
	return cdc.LineCoding{
		DTERate:    s.Baud,
		CharFormat: stopBits[s.Stop],
		ParityType: parities[s.Parity],
		DataBits:   s.DataBits,
	}
}

// Validate checks the data bits, which Kong cannot enumerate for integers.
func (s *Serial) Validate() error {
	switch s.DataBits {
	case 5, 6, 7, 8, 16:
		return nil
	}
	return fmt.Errorf("data bits %d: must be 5, 6, 7, 8 or 16", s.DataBits)
}

// Run is called by Kong when the serial command is executed.
func (s *Serial) Run(logger *slog.Logger, id *config.Identity, out io.Writer) error {
	if err := s.Validate(); err != nil {
		return err
	}
	b, err := newBench(FunctionCDC, id)
	if err != nil {
		return err
	}
	defer b.close()

	lc, err := b.open(s.Address, s.LineCoding())
	if err != nil {
		return err
	}
	logger.Info("port open", "line", lc.String(), "dtr", b.acm.DTR())

	echo, err := b.loopback([]byte(s.Text))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "line coding %s\n", lc)
	fmt.Fprintf(out, "echo %q\n", echo)
	return nil
}

// open configures the port, sets the line coding, raises DTR and reads the
// line coding back.
func (b *bench) open(addr uint8, lc cdc.LineCoding) (cdc.LineCoding, error) {
	if err := b.configure(addr); err != nil {
		return lc, err
	}
	var buf [cdc.LineCodingSize]byte
	lc.MarshalTo(buf[:])
	set := device.ClassRequest(false, cdc.RequestSetLineCoding, 0, cdc.InterfaceComm, cdc.LineCodingSize)
	if err := b.host.ControlOut(set.Bytes(), buf[:]); err != nil {
		return lc, fmt.Errorf("SET_LINE_CODING: %w", err)
	}
	dtr := device.ClassRequest(false, cdc.RequestSetControlLineState, cdc.ControlLineDTR, cdc.InterfaceComm, 0)
	if err := b.host.ControlOut(dtr.Bytes(), nil); err != nil {
		return lc, fmt.Errorf("SET_CONTROL_LINE_STATE: %w", err)
	}
	get := device.ClassRequest(true, cdc.RequestGetLineCoding, 0, cdc.InterfaceComm, cdc.LineCodingSize)
	raw, err := b.host.ControlIn(get.Bytes())
	if err != nil {
		return lc, fmt.Errorf("GET_LINE_CODING: %w", err)
	}
	var got cdc.LineCoding
	if !cdc.ParseLineCoding(raw, &got) {
		return lc, fmt.Errorf("GET_LINE_CODING returned %d bytes: %w", len(raw), pkg.ErrProtocol)
	}
	return got, nil
}

// loopback sends data on the bulk OUT endpoint in full-size packets. The
// device side echoes everything it reads and the host collects the echo.
// A NAK on OUT means the receive ring is holding the endpoint, so the
// device drains it before the packet is retried.
func (b *bench) loopback(data []byte) ([]byte, error) {
	var echo []byte
	for off := 0; off < len(data); {
		end := min(off+cdc.DataPacketSize, len(data))
		err := b.out(cdc.EndpointDataOut, data[off:end])
		switch {
		case err == nil:
			off = end
		case errors.Is(err, pkg.ErrNAK):
			got, err := b.echo()
			if err != nil {
				return echo, err
			}
			if len(got) == 0 && b.acm.Buffered() == 0 {
				return echo, fmt.Errorf("bulk OUT held with nothing buffered: %w", pkg.ErrNAK)
			}
			echo = append(echo, got...)
		default:
			return echo, fmt.Errorf("bulk OUT: %w", err)
		}
	}
	got, err := b.echo()
	return append(echo, got...), err
}

// echo moves everything the device has received back through the bulk IN
// endpoint and returns what the host read.
func (b *bench) echo() ([]byte, error) {
	var (
		buf  [cdc.DataPacketSize]byte
		host []byte
	)
	for {
		n, err := b.acm.Read(buf[:])
		if err != nil {
			return host, err
		}
		if n == 0 {
			break
		}
		for p := buf[:n]; len(p) > 0; {
			w, err := b.acm.Write(p)
			p = p[w:]
			if err != nil && !errors.Is(err, pkg.ErrNotReady) {
				return host, err
			}
			got, err := b.drainIn(cdc.EndpointDataIn)
			host = append(host, got...)
			if err != nil {
				return host, err
			}
		}
	}
	got, err := b.drainIn(cdc.EndpointDataIn)
	return append(host, got...), err
}

// drainIn polls an IN endpoint until it NAKs.
func (b *bench) drainIn(ep uint8) ([]byte, error) {
	var data []byte
	for {
		pkt, _, err := b.host.In(ep)
		if errors.Is(err, pkg.ErrNAK) {
			return data, nil
		}
		if err != nil {
			return data, fmt.Errorf("bulk IN: %w", err)
		}
		data = append(data, pkt...)
	}
}
