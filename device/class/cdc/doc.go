// Package cdc implements a CDC-ACM virtual COM port on the device engine.
//
// The function has two interfaces. Interface 0 is the communication
// interface: it answers GET_LINE_CODING, SET_LINE_CODING,
// SET_CONTROL_LINE_STATE and SEND_BREAK and owns the SERIAL_STATE
// notification endpoint (EP1 IN). Interface 1 carries the data: bulk OUT on
// EP2 and bulk IN on EP3.
//
// Packets the host writes are queued in a ring. Once the ring is nearly
// full the engine NAKs further packets until Read drains it.
//
//	acm := cdc.NewACM()
//	eng := device.NewEngine(ctrl, cdc.Descriptors(cdc.DefaultIdentity), device.WithClass(acm))
//	acm.Bind(eng)
//	eng.Init()
//
//	n, _ := acm.Read(buf)
//	acm.Write(buf[:n])
package cdc
