// Package heatpump defines the boundary to the heat-pump driver.
//
// The serial protocol driver itself lives outside this repository. The agent
// only depends on the Driver interface: a Sync call that returns the current
// Snapshot, and calls to change settings. Simulator implements Driver in
// memory and is used for bench runs and tests.
//
// Drivers may also report changes through callbacks (see Notifier), which the
// event-driven change detector in the poller package subscribes to.
package heatpump
