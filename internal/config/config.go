// Package config defines the settings shared by the usbfsd commands and
// loads them from JSON, YAML and TOML files.
package config

import (
	"fmt"
	"strconv"

	"github.com/ch643/usbfsd/device"
	"github.com/ch643/usbfsd/pkg"
)

// Log selects the log level and an optional log file.
type Log struct {
	Level  string `help:"Log level: trace, debug, info, warn, error" default:"info" env:"USBFSD_LOG_LEVEL"`
	File   string `help:"Log file path (default: none; logs only to console)" env:"USBFSD_LOG_FILE"`
	Format string `help:"Log file format: text, json" enum:"text,json" default:"text" env:"USBFSD_LOG_FORMAT"`
}

// FileFormat returns the pkg format for the log file.
func (l *Log) FileFormat() pkg.LogFormat {
	if l.Format == "json" {
		return pkg.LogFormatJSON
	}
	return pkg.LogFormatText
}

// Identity overrides the identity a device function reports. Empty fields
// keep the function's default. Flag names double as configuration file
// keys.
type Identity struct {
	VendorID     string `name:"vid" help:"Vendor ID, e.g. 0x1a86" env:"USBFSD_VID" json:"vid,omitempty" yaml:"vid,omitempty" toml:"vid,omitempty"`
	ProductID    string `name:"pid" help:"Product ID, e.g. 0xfe0c" env:"USBFSD_PID" json:"pid,omitempty" yaml:"pid,omitempty" toml:"pid,omitempty"`
	Manufacturer string `help:"Manufacturer string" env:"USBFSD_MANUFACTURER" json:"manufacturer,omitempty" yaml:"manufacturer,omitempty" toml:"manufacturer,omitempty"`
	Product      string `help:"Product string" env:"USBFSD_PRODUCT" json:"product,omitempty" yaml:"product,omitempty" toml:"product,omitempty"`
	Serial       string `help:"Serial number string" env:"USBFSD_SERIAL" json:"serial,omitempty" yaml:"serial,omitempty" toml:"serial,omitempty"`
	MaxPower     int    `name:"power" help:"Maximum bus current in mA (0: default)" env:"USBFSD_POWER" json:"power,omitempty" yaml:"power,omitempty" toml:"power,omitempty"`
	Wakeup       string `help:"Remote wakeup: default, on, off" enum:"default,on,off" default:"default" env:"USBFSD_WAKEUP" json:"wakeup,omitempty" yaml:"wakeup,omitempty" toml:"wakeup,omitempty"`
}

// Validate is called by kong after parsing.
func (id *Identity) Validate() error {
	_, err := id.Apply(device.Identity{})
	return err
}

// Apply returns base with the configured overrides applied.
func (id *Identity) Apply(base device.Identity) (device.Identity, error) {
	out := base
	if id.VendorID != "" {
		v, err := parseID(id.VendorID)
		if err != nil {
			return base, fmt.Errorf("vid: %w", err)
		}
		out.VendorID = v
	}
	if id.ProductID != "" {
		v, err := parseID(id.ProductID)
		if err != nil {
			return base, fmt.Errorf("pid: %w", err)
		}
		out.ProductID = v
	}
	if id.Manufacturer != "" {
		out.Manufacturer = id.Manufacturer
	}
	if id.Product != "" {
		out.Product = id.Product
	}
	if id.Serial != "" {
		out.Serial = id.Serial
	}
	switch {
	case id.MaxPower < 0 || id.MaxPower > 500:
		return base, fmt.Errorf("power %d mA out of range 0-500", id.MaxPower)
	case id.MaxPower > 0:
		out.MaxPower = uint8((id.MaxPower + 1) / 2)
	}
	switch id.Wakeup {
	case "on":
		out.RemoteWakeup = true
	case "off":
		out.RemoteWakeup = false
	}
	return out, nil
}

// parseID accepts decimal, 0x-prefixed hex or bare four-digit hex.
func parseID(s string) (uint16, error) {
	base := 0
	if len(s) == 4 {
		base = 16
	}
	v, err := strconv.ParseUint(s, base, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid ID %q", s)
	}
	return uint16(v), nil
}
