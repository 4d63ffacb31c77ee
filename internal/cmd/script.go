package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ch643/usbfsd/device"
)

// Script is a sequence of bus operations replayed against a simulated
// device, decoded from YAML:
//
//	function: cdc
//	steps:
//	  - name: line coding
//	    op: control-in
//	    setup: {type: 0xA1, request: 0x21, length: 7}
//	    expect: 00 c2 01 00 00 00 08
//	  - op: out
//	    ep: 2
//	    text: hello
//	  - op: in
//	    ep: 3
//	    error: nak
type Script struct {
	Function string `yaml:"function"`
	Address  uint8  `yaml:"address"`
	Steps    []Step `yaml:"steps"`
}

// Step operations.
const (
	OpControlIn  = "control-in"
	OpControlOut = "control-out"
	OpSetup      = "setup"
	OpIn         = "in"
	OpOut        = "out"
	OpReset      = "reset"
	OpSuspend    = "suspend"
	OpResume     = "resume"
	OpSOF        = "sof"
	OpConfigure  = "configure"
)

// Step is one operation of a Script.
type Step struct {
	Name  string  `yaml:"name"`
	Op    string  `yaml:"op"`
	Setup *Setup  `yaml:"setup"`
	EP    uint8   `yaml:"ep"`
	Data  HexData `yaml:"data"`
	Text  string  `yaml:"text"`
	DATA1 *bool   `yaml:"data1"`

	Expect *HexData `yaml:"expect"`
	Error  string   `yaml:"error"` // "", "stall", "nak" or "any"
}

// Setup spells out a SETUP packet.
type Setup struct {
	Type    uint8  `yaml:"type"`
	Request uint8  `yaml:"request"`
	Value   uint16 `yaml:"value"`
	Index   uint16 `yaml:"index"`
	Length  uint16 `yaml:"length"`
}

// Packet returns the SETUP packet.
func (s *Setup) Packet() device.SetupPacket {
	return device.SetupPacket{
		RequestType: s.Type,
		Request:     s.Request,
		Value:       s.Value,
		Index:       s.Index,
		Length:      s.Length,
	}
}

// HexData is a byte string written as hex digits, optionally separated by
// spaces, colons or dashes.
type HexData []byte

// UnmarshalYAML implements yaml.Unmarshaler.
func (h *HexData) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	s = strings.NewReplacer(" ", "", ":", "", "-", "", "\n", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*h = b
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (h HexData) MarshalYAML() (any, error) {
	return fmt.Sprintf("% x", []byte(h)), nil
}

// payload returns the bytes a step sends.
func (s *Step) payload() []byte {
	if s.Text != "" {
		return []byte(s.Text)
	}
	return s.Data
}

// label names a step in reports.
func (s *Step) label(i int) string {
	if s.Name != "" {
		return fmt.Sprintf("step %d (%s)", i+1, s.Name)
	}
	return fmt.Sprintf("step %d (%s)", i+1, s.Op)
}

// ParseScript decodes a YAML script and checks every step.
func ParseScript(r io.Reader) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	if s.Function == "" {
		s.Function = FunctionHID
	}
	if s.Address == 0 {
		s.Address = 5
	}
	for i := range s.Steps {
		if err := s.Steps[i].validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", s.Steps[i].label(i), err)
		}
	}
	return &s, nil
}

func (s *Step) validate() error {
	switch s.Op {
	case OpControlIn, OpControlOut, OpSetup:
		if s.Setup == nil {
			return fmt.Errorf("%s needs a setup packet", s.Op)
		}
	case OpIn, OpOut:
		if s.EP >= device.NumEndpoints {
			return fmt.Errorf("endpoint %d out of range", s.EP)
		}
	case OpReset, OpSuspend, OpResume, OpSOF, OpConfigure:
	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}
	switch s.Error {
	case "", "stall", "nak", "any":
	default:
		return fmt.Errorf("unknown error %q", s.Error)
	}
	return nil
}
