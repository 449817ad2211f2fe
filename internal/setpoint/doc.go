// Package setpoint persists the user's per-mode temperature preferences.
//
// Each mode (cool, heat, auto) owns one fixed-size record. Records are
// addressed by a slot number: the FNV-1a hash of the device id plus the
// mode's offset (1, 2, 3). The same device id always yields the same slots,
// so records survive restarts and firmware updates.
//
// Two backends are provided:
//   - SQLiteBackend stores records in the setpoints table
//   - FileBackend stores each record in its own crash-safe extremofile
//     directory, for devices with a bare flash filesystem
//
// Store keeps the loaded values in memory and only touches the backend when
// a value actually changes.
package setpoint
