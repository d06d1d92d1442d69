package hbdomain

import (
	"time"
)

const (
	DefaultInterval     = 5 * time.Minute
	MinInterval         = 30 * time.Second
	MaxInterval         = 365 * 24 * time.Hour
	Retention           = 90 * 24 * time.Hour // expires_at = last_ping_at + Retention
	RepeatAlertInterval = 1 * time.Hour
)

// All stored timestamps have one-second resolution. Storage backends persist epoch
// seconds, so anything finer would not survive a round trip.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// Ping applies a successful ping. existing == nil means the monitor is created by this
// ping. intervalOverride == 0 keeps the stored interval (or the default for new monitors).
// The second return value reports an Overdue -> Ok recovery.
func Ping(existing *Monitor, slug string, intervalOverride time.Duration, now time.Time) (Monitor, bool) {
	now = Timestamp(now)

	if existing == nil {
		interval := DefaultInterval
		if intervalOverride != 0 {
			interval = intervalOverride
		}

		return Monitor{
			Slug:           slug,
			Interval:       interval,
			LastPingAt:     now,
			NextDueAt:      now.Add(interval),
			State:          StateOk,
			CheckPartition: PartitionFor(slug),
			CreatedAt:      now,
			ExpiresAt:      now.Add(Retention),
		}, false
	}

	updated := *existing
	if intervalOverride != 0 {
		updated.Interval = intervalOverride
	}
	updated.LastPingAt = now
	updated.NextDueAt = now.Add(updated.Interval)
	updated.ExpiresAt = now.Add(Retention)
	updated.State = StateOk
	updated.CheckPartition = PartitionFor(slug)

	return updated, existing.State == StateOverdue
}

// "fail now": next scan sees the monitor as overdue. last_ping_at and state stay.
func Fail(mon Monitor, now time.Time) Monitor {
	mon.NextDueAt = Timestamp(now)
	return mon
}

func SetPaused(mon Monitor, paused bool) Monitor {
	mon.Paused = paused
	return mon
}

// the condition the scan query applies
func IsOverdue(mon Monitor, now time.Time) bool {
	return !mon.Paused && !mon.NextDueAt.After(now)
}

// precondition of RecordAlert(), checked atomically at commit time. a ping that landed
// after the scan read pushed next_due_at into the future and invalidates the alert, as
// does a pause.
func CanRecordAlert(mon Monitor, at time.Time) bool {
	return !mon.Paused && !mon.NextDueAt.After(Timestamp(at))
}

func RecordAlert(mon Monitor, at time.Time) Monitor {
	at = Timestamp(at)

	mon.State = StateOverdue
	mon.LastAlertAt = &at
	mon.AlertCount++

	return mon
}

// first time going overdue, or nothing sent yet, or the hourly repeat window elapsed
func ShouldAlert(mon Monitor, now time.Time) bool {
	if mon.State != StateOverdue || mon.LastAlertAt == nil {
		return true
	}

	return now.Sub(*mon.LastAlertAt) >= RepeatAlertInterval
}

// whether the next alert for this monitor is the first of its overdue period
func IsFirstAlert(mon Monitor) bool {
	return mon.State != StateOverdue || mon.LastAlertAt == nil
}

// Status is the view reported to API callers. paused takes precedence over overdue.
func (m Monitor) Status(now time.Time) State {
	switch {
	case m.Paused:
		return StatePaused
	case m.State == StateOverdue || m.NextDueAt.Before(Timestamp(now)):
		return StateOverdue
	default:
		return StateOk
	}
}

func (m Monitor) IsExpired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && !now.Before(m.ExpiresAt)
}
