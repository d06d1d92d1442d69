package hbalert

import (
	"fmt"
	"github.com/function61/lambda-heartbeat/pkg/hbdomain"
	"time"
)

// ⚠️ OVERDUE: `my-job` | interval: 5m | last: 12:03 UTC | 7m late
func FormatOverdue(mon hbdomain.Monitor, now time.Time) string {
	return fmt.Sprintf(
		"⚠️ OVERDUE: `%s` | interval: %s | last: %s | %s late",
		mon.Slug,
		hbdomain.FormatDuration(mon.Interval),
		mon.LastPingAt.UTC().Format("15:04 UTC"),
		hbdomain.FormatDuration(now.Sub(mon.NextDueAt)))
}

// ⚠️ STILL OVERDUE: `my-job` | down 23m
func FormatRepeat(mon hbdomain.Monitor, now time.Time) string {
	return fmt.Sprintf(
		"⚠️ STILL OVERDUE: `%s` | down %s",
		mon.Slug,
		hbdomain.FormatDuration(now.Sub(mon.NextDueAt)))
}

// ✅ RECOVERED: `my-job` (was down 23m)
func FormatRecovery(slug string, downtime time.Duration) string {
	return fmt.Sprintf(
		"✅ RECOVERED: `%s` (was down %s)",
		slug,
		hbdomain.FormatDuration(downtime))
}
