// Package hid implements a composite boot keyboard and mouse on top of the
// device control-transfer engine.
//
// Interface 0 is the keyboard (8-byte reports on interrupt IN endpoint 1)
// and interface 1 the mouse (4-byte reports on interrupt IN endpoint 2).
// The [Handler] answers the HID class requests of both interfaces, serves
// their HID and report descriptors and records the keyboard LED state the
// host writes with SET_REPORT.
//
// # Usage
//
//	desc := hid.Descriptors(hid.DefaultIdentity)
//	kbd := hid.New(desc)
//	eng := device.NewEngine(ctrl, desc, device.WithClass(kbd))
//	kbd.Bind(eng)
//	eng.Init()
//
//	kbd.SetOnLED(func(leds uint8) {
//	    capsLock := leds&hid.LEDCapsLock != 0
//	    _ = capsLock
//	})
//
//	report := hid.KeyboardReport{Modifiers: hid.ModLeftShift}
//	report.SetKey(hid.KeyA)
//	err := kbd.SendKeyboard(&report)
//
// Report descriptors are encoded with [ReportBuilder].
package hid
