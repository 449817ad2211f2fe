// Package control applies inbound command and config messages to the
// heat pump.
//
// Messages are JSON objects; every field is optional:
//
//	{"mode": "cool", "target_temperature": 21.5, "fan": "auto",
//	 "vane": "swing", "remote_temperature": 19.0}
//
// Switching mode without a target temperature restores the setpoint saved
// for the new mode, if there is one. A remote_temperature of 0 returns the
// unit to its internal sensor.
package control
