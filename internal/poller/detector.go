package poller

import (
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-cloudlink/internal/heatpump"
	"github.com/nerrad567/gray-logic-cloudlink/internal/infrastructure/config"
)

// Delta describes what changed in a snapshot.
type Delta struct {
	Snapshot        heatpump.Snapshot
	SettingsChanged bool
	StatusChanged   bool
}

// ChangeDetector reports whether a freshly synced snapshot differs from
// the previous one.
type ChangeDetector interface {
	Poll(snap heatpump.Snapshot) (Delta, bool)
}

// PolledDetector compares each snapshot with the one before it.
type PolledDetector struct {
	last *heatpump.Snapshot
}

// NewPolledDetector creates a detector that reports the first snapshot as
// changed.
func NewPolledDetector() *PolledDetector {
	return &PolledDetector{}
}

// Poll implements ChangeDetector.
func (d *PolledDetector) Poll(snap heatpump.Snapshot) (Delta, bool) {
	delta := Delta{Snapshot: snap, SettingsChanged: true, StatusChanged: true}
	if d.last != nil {
		delta.SettingsChanged = d.last.Settings != snap.Settings
		delta.StatusChanged = d.last.Status != snap.Status
	}
	d.last = &snap
	return delta, delta.SettingsChanged || delta.StatusChanged
}

// EventDetector collects the driver's change notifications between polls.
type EventDetector struct {
	mu       sync.Mutex
	primed   bool
	settings bool
	status   bool
}

// NewEventDetector subscribes to n's notifications.
func NewEventDetector(n heatpump.Notifier) *EventDetector {
	d := &EventDetector{}
	n.OnSettingsChanged(func(heatpump.Settings) {
		d.mu.Lock()
		d.settings = true
		d.mu.Unlock()
	})
	n.OnStatusChanged(func(heatpump.Status) {
		d.mu.Lock()
		d.status = true
		d.mu.Unlock()
	})
	return d
}

// Poll implements ChangeDetector. The first poll always reports a change so
// the initial state gets published.
func (d *EventDetector) Poll(snap heatpump.Snapshot) (Delta, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delta := Delta{Snapshot: snap, SettingsChanged: d.settings, StatusChanged: d.status}
	if !d.primed {
		delta.SettingsChanged, delta.StatusChanged = true, true
		d.primed = true
	}
	d.settings, d.status = false, false
	return delta, delta.SettingsChanged || delta.StatusChanged
}

// NewDetector selects a detector by configuration name.
func NewDetector(kind string, driver heatpump.Driver) (ChangeDetector, error) {
	switch kind {
	case config.ChangeDetectionPoll, "":
		return NewPolledDetector(), nil
	case config.ChangeDetectionEvent:
		n, ok := driver.(heatpump.Notifier)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrDetectorUnsupported, driver)
		}
		return NewEventDetector(n), nil
	}
	return nil, fmt.Errorf("%w: unknown detector %q", ErrDetectorUnsupported, kind)
}
