// Structure of monitor and API key records, and the lifecycle rules that govern them
package hbdomain

import (
	"time"
)

type State string

const (
	StateOk      State = "ok"
	StateOverdue State = "overdue"
	StatePaused  State = "paused" // only ever derived (see Status()), never stored
)

type Monitor struct {
	Slug           string        `json:"slug"`
	Interval       time.Duration `json:"interval"`
	LastPingAt     time.Time     `json:"last_ping_at"`
	NextDueAt      time.Time     `json:"next_due_at"`
	State          State         `json:"state"`
	LastAlertAt    *time.Time    `json:"last_alert_at,omitempty"`
	AlertCount     int           `json:"alert_count"`
	Paused         bool          `json:"paused"`
	CheckPartition string        `json:"check_partition"`
	CreatedAt      time.Time     `json:"created_at"`
	ExpiresAt      time.Time     `json:"expires_at"`
}

// what callers of the API get to see
type Summary struct {
	Slug            string     `json:"slug"`
	State           State      `json:"state"`
	Status          State      `json:"status"`
	Paused          bool       `json:"paused"`
	Interval        string     `json:"interval"`
	IntervalSeconds int64      `json:"interval_seconds"`
	LastPingAt      time.Time  `json:"last_ping_at"`
	NextDueAt       time.Time  `json:"next_due_at"`
	LastAlertAt     *time.Time `json:"last_alert_at,omitempty"`
}

func (m Monitor) Summary(now time.Time) Summary {
	return Summary{
		Slug:            m.Slug,
		State:           m.State,
		Status:          m.Status(now),
		Paused:          m.Paused,
		Interval:        FormatDuration(m.Interval),
		IntervalSeconds: int64(m.Interval / time.Second),
		LastPingAt:      m.LastPingAt,
		NextDueAt:       m.NextDueAt,
		LastAlertAt:     m.LastAlertAt,
	}
}

type APIKey struct {
	Key         string    `json:"api_key"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
