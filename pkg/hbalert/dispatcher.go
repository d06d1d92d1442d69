// Sends overdue and recovery notifications, and records alert bookkeeping
package hbalert

import (
	"context"
	"errors"
	"fmt"
	"github.com/function61/gokit/logex"
	"github.com/function61/lambda-heartbeat/pkg/hbdomain"
	"github.com/function61/lambda-heartbeat/pkg/hbmetrics"
	"github.com/function61/lambda-heartbeat/pkg/hbnotify"
	"github.com/function61/lambda-heartbeat/pkg/hbstore"
	"log"
	"time"
)

const notificationTimeout = 10 * time.Second

type Dispatcher struct {
	store    hbstore.Store
	notifier hbnotify.Notifier
	metrics  *hbmetrics.Metrics
	logl     *logex.Leveled
}

func New(
	store hbstore.Store,
	notifier hbnotify.Notifier,
	metrics *hbmetrics.Metrics,
	logger *log.Logger,
) *Dispatcher {
	return &Dispatcher{
		store:    store,
		notifier: notifier,
		metrics:  metrics,
		logl:     logex.Levels(logger),
	}
}

// SendOverdue notifies about an overdue monitor and then records the alert. Nothing is
// recorded if delivery fails, so the next scan tries again. If a ping or pause landed in
// between, RecordAlert() fails with hbstore.ErrPreconditionFailed.
func (d *Dispatcher) SendOverdue(ctx context.Context, mon hbdomain.Monitor, now time.Time) (*hbdomain.Monitor, error) {
	kind, text := hbmetrics.NotificationRepeat, FormatRepeat(mon, now)
	if hbdomain.IsFirstAlert(mon) {
		kind, text = hbmetrics.NotificationOverdue, FormatOverdue(mon, now)
	}

	if err := d.send(ctx, kind, text); err != nil {
		return nil, fmt.Errorf("%s: %w", mon.Slug, err)
	}

	alerted, err := d.store.RecordAlert(ctx, mon.Slug, now)
	if err != nil {
		return nil, err
	}

	d.logl.Info.Printf("alerted %s (#%d)", mon.Slug, alerted.AlertCount)

	return alerted, nil
}

// no-op unless the ping was an Overdue -> Ok transition
func (d *Dispatcher) SendRecovery(ctx context.Context, result *hbstore.PingResult, now time.Time) error {
	if !result.Recovered || result.Previous == nil {
		return nil
	}

	downtime := now.Sub(result.Previous.NextDueAt)

	if err := d.send(ctx, hbmetrics.NotificationRecovery, FormatRecovery(result.Monitor.Slug, downtime)); err != nil {
		return fmt.Errorf("%s: %w", result.Monitor.Slug, err)
	}

	d.logl.Info.Printf("recovered %s after %s", result.Monitor.Slug, hbdomain.FormatDuration(downtime))

	return nil
}

func (d *Dispatcher) send(ctx context.Context, kind string, text string) error {
	ctx, cancel := context.WithTimeout(ctx, notificationTimeout)
	defer cancel()

	err := d.notifier.Send(ctx, text)

	d.metrics.ObserveNotification(kind, err)

	if err != nil && !errors.Is(err, hbdomain.ErrDeliveryFailed) {
		return fmt.Errorf("%w: %v", hbdomain.ErrDeliveryFailed, err)
	}

	return err
}
