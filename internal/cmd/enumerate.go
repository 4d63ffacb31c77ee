package cmd

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"

	"github.com/ch643/usbfsd/device"
	"github.com/ch643/usbfsd/internal/config"
	"github.com/ch643/usbfsd/internal/usbid"
)

// Enumerate runs the host side of enumeration against a simulated device
// and prints what the host learned.
type Enumerate struct {
	Function string `help:"Device function: hid or cdc" enum:"hid,cdc" default:"hid" short:"f"`
	Address  uint8  `help:"Address assigned by SET_ADDRESS" default:"5"`
	USBIDs   string `name:"usb-ids" help:"usb.ids database (default: system locations)" type:"path"`
	Trace    bool   `help:"Print every bus transaction" short:"t"`
}

// Run is called by Kong when the enumerate command is executed.
func (e *Enumerate) Run(logger *slog.Logger, id *config.Identity, out io.Writer) error {
	b, err := newBench(e.Function, id)
	if err != nil {
		return err
	}
	defer b.close()

	var paths []string
	if e.USBIDs != "" {
		paths = []string{e.USBIDs}
	}
	ids, err := usbid.Open(paths...)
	if err != nil {
		logger.Warn("usb.ids unavailable", "error", err)
	}

	r, err := enumerate(b, e.Address)
	if err != nil {
		return err
	}
	logger.Info("enumerated", "function", e.Function, "address", e.Address, "state", b.eng.State().String())

	r.print(out, ids)
	if e.Trace {
		fmt.Fprintln(out)
		for _, t := range b.host.Transactions() {
			fmt.Fprintln(out, t)
		}
	}
	return nil
}

// enumeration is what a host reads from a device.
type enumeration struct {
	device  device.DeviceDescriptor
	config  device.Descriptors
	strings map[uint8]string
}

// enumerate follows the usual host order: a 64-byte device descriptor read
// at address 0, a bus reset, SET_ADDRESS, the full device and configuration
// descriptors, the strings and finally SET_CONFIGURATION.
func enumerate(b *bench, addr uint8) (*enumeration, error) {
	r := &enumeration{strings: make(map[uint8]string)}

	if _, err := b.host.ControlIn(device.GetDescriptor(device.DescriptorTypeDevice, 0, 0, 64).Bytes()); err != nil {
		return nil, fmt.Errorf("initial device descriptor: %w", err)
	}
	b.busReset()
	if err := b.host.ControlOut(device.SetAddress(addr).Bytes(), nil); err != nil {
		return nil, fmt.Errorf("SET_ADDRESS: %w", err)
	}

	raw, err := b.host.ControlIn(device.GetDescriptor(device.DescriptorTypeDevice, 0, 0, device.DeviceDescriptorSize).Bytes())
	if err != nil {
		return nil, fmt.Errorf("device descriptor: %w", err)
	}
	if err := device.ParseDeviceDescriptor(raw, &r.device); err != nil {
		return nil, fmt.Errorf("device descriptor: %w", err)
	}

	head, err := b.host.ControlIn(device.GetDescriptor(device.DescriptorTypeConfiguration, 0, 0, device.ConfigurationDescriptorSize).Bytes())
	if err != nil {
		return nil, fmt.Errorf("configuration header: %w", err)
	}
	if len(head) < device.ConfigurationDescriptorSize {
		return nil, fmt.Errorf("configuration header: %d bytes", len(head))
	}
	total := binary.LittleEndian.Uint16(head[2:])
	r.config.Configuration, err = b.host.ControlIn(device.GetDescriptor(device.DescriptorTypeConfiguration, 0, 0, total).Bytes())
	if err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}

	langs, err := b.host.ControlIn(device.GetDescriptor(device.DescriptorTypeString, 0, 0, 255).Bytes())
	if err == nil && len(langs) >= 4 {
		lang := binary.LittleEndian.Uint16(langs[2:])
		for _, i := range []uint8{r.device.ManufacturerIndex, r.device.ProductIndex, r.device.SerialNumberIndex} {
			if i == 0 {
				continue
			}
			raw, err := b.host.ControlIn(device.GetDescriptor(device.DescriptorTypeString, i, lang, 255).Bytes())
			if err != nil {
				return nil, fmt.Errorf("string %d: %w", i, err)
			}
			if r.strings[i], err = device.ParseStringDescriptor(raw); err != nil {
				return nil, fmt.Errorf("string %d: %w", i, err)
			}
		}
	}

	value := r.config.ConfigurationValue()
	if err := b.host.ControlOut(device.SetConfiguration(value).Bytes(), nil); err != nil {
		return nil, fmt.Errorf("SET_CONFIGURATION: %w", err)
	}
	return r, nil
}

func (r *enumeration) print(w io.Writer, ids *usbid.Database) {
	d := &r.device
	fmt.Fprintf(w, "ID %s\n", ids.Describe(d.VendorID, d.ProductID))
	fmt.Fprintf(w, "  bcdUSB          %x.%02x\n", d.USBVersion>>8, d.USBVersion&0xFF)
	fmt.Fprintf(w, "  bDeviceClass    %3d %s\n", d.DeviceClass, ids.Class(d.DeviceClass))
	fmt.Fprintf(w, "  bMaxPacketSize0 %3d\n", d.MaxPacketSize0)
	fmt.Fprintf(w, "  idVendor        0x%04x %s\n", d.VendorID, ids.Vendor(d.VendorID))
	fmt.Fprintf(w, "  idProduct       0x%04x %s\n", d.ProductID, ids.Product(d.VendorID, d.ProductID))
	fmt.Fprintf(w, "  iManufacturer   %3d %s\n", d.ManufacturerIndex, r.strings[d.ManufacturerIndex])
	fmt.Fprintf(w, "  iProduct        %3d %s\n", d.ProductIndex, r.strings[d.ProductIndex])
	fmt.Fprintf(w, "  iSerial         %3d %s\n", d.SerialNumberIndex, r.strings[d.SerialNumberIndex])

	var cfg device.ConfigurationDescriptor
	if device.ParseConfigurationDescriptor(r.config.Configuration, &cfg) == nil {
		fmt.Fprintf(w, "  Configuration %d: %d interfaces, attributes 0x%02x, %d mA\n",
			cfg.ConfigurationValue, cfg.NumInterfaces, cfg.Attributes, int(cfg.MaxPower)*2)
	}

	r.config.Each(func(_ uint8, desc []byte) bool {
		switch desc[1] {
		case device.DescriptorTypeConfiguration:
		case device.DescriptorTypeInterface:
			var i device.InterfaceDescriptor
			if device.ParseInterfaceDescriptor(desc, &i) == nil {
				fmt.Fprintf(w, "    Interface %d: class %d %s, subclass %d, protocol %d, %d endpoints\n",
					i.InterfaceNumber, i.InterfaceClass, ids.Class(i.InterfaceClass),
					i.InterfaceSubClass, i.InterfaceProtocol, i.NumEndpoints)
			}
		case device.DescriptorTypeEndpoint:
			var ep device.EndpointDescriptor
			if device.ParseEndpointDescriptor(desc, &ep) == nil {
				fmt.Fprintf(w, "      Endpoint 0x%02x %s %s, %d bytes, interval %d\n",
					ep.EndpointAddress, device.TransferTypeName(ep.Attributes),
					device.DirectionName(ep.EndpointAddress), ep.MaxPacketSize, ep.Interval)
			}
		default:
			fmt.Fprintf(w, "      Descriptor 0x%02x: % x\n", desc[1], desc)
		}
		return true
	})
}
