// Package poller drives the device's periodic update cycle.
//
// Each tick the Scheduler:
//
//  1. syncs a snapshot from the heat pump driver
//  2. connects the broker session if it is not connected; a failed connect
//     makes the device non-operational for the rest of the run
//  3. applies inbound control messages queued since the last tick
//  4. persists the snapshot's setpoint when it differs from the stored one
//  5. publishes telemetry when the ChangeDetector reports a change, or when
//     an earlier change has not been published yet
//
// A ChangeDetector decides whether a snapshot is new. PolledDetector diffs
// consecutive snapshots; EventDetector relies on the driver's change
// notifications. Both implement the same interface and are selected by
// configuration.
package poller
