// Operations behind the ping and monitor management API
package hbping

import (
	"context"
	"github.com/function61/gokit/logex"
	"github.com/function61/lambda-heartbeat/pkg/hbalert"
	"github.com/function61/lambda-heartbeat/pkg/hbdomain"
	"github.com/function61/lambda-heartbeat/pkg/hbmetrics"
	"github.com/function61/lambda-heartbeat/pkg/hbstore"
	"log"
	"sort"
	"time"
)

type Handler struct {
	store      hbstore.Store
	dispatcher *hbalert.Dispatcher
	metrics    *hbmetrics.Metrics
	logl       *logex.Leveled
}

func New(
	store hbstore.Store,
	dispatcher *hbalert.Dispatcher,
	metrics *hbmetrics.Metrics,
	logger *log.Logger,
) *Handler {
	return &Handler{
		store:      store,
		dispatcher: dispatcher,
		metrics:    metrics,
		logl:       logex.Levels(logger),
	}
}

// Ping creates or refreshes a monitor. intervalSpec == "" keeps the stored interval.
// Recovery is notified before returning, but a failed notification does not fail the
// ping since the state change has already been committed.
func (h *Handler) Ping(ctx context.Context, slug string, intervalSpec string, now time.Time) (*hbdomain.Summary, error) {
	if err := hbdomain.ValidateSlug(slug); err != nil {
		h.metrics.ObservePing(hbmetrics.PingRejected)
		return nil, err
	}

	var interval time.Duration
	if intervalSpec != "" {
		var err error
		interval, err = hbdomain.ParseInterval(intervalSpec)
		if err != nil {
			h.metrics.ObservePing(hbmetrics.PingRejected)
			return nil, err
		}
	}

	result, err := h.store.UpsertOnPing(ctx, slug, interval, now)
	if err != nil {
		h.metrics.ObservePing(hbmetrics.PingFailed)
		return nil, err
	}

	switch {
	case result.Created():
		h.logl.Info.Printf("created %s (interval %s)", slug, hbdomain.FormatDuration(result.Monitor.Interval))
		h.metrics.ObservePing(hbmetrics.PingCreated)
	case result.Recovered:
		h.metrics.ObservePing(hbmetrics.PingRecovered)

		if err := h.dispatcher.SendRecovery(ctx, result, now); err != nil {
			h.logl.Error.Printf("recovery notification: %v", err)
		}
	default:
		h.metrics.ObservePing(hbmetrics.PingRefreshed)
	}

	return summary(&result.Monitor, now), nil
}

// makes the monitor due immediately, so the next scan alerts about it
func (h *Handler) Fail(ctx context.Context, slug string, now time.Time) (*hbdomain.Summary, error) {
	if err := hbdomain.ValidateSlug(slug); err != nil {
		return nil, err
	}

	mon, err := h.store.MarkFailed(ctx, slug, now)
	if err != nil {
		return nil, err
	}

	h.logl.Info.Printf("%s reported failure", slug)

	return summary(mon, now), nil
}

func (h *Handler) Pause(ctx context.Context, slug string, now time.Time) (*hbdomain.Summary, error) {
	return h.setPaused(ctx, slug, true, now)
}

func (h *Handler) Unpause(ctx context.Context, slug string, now time.Time) (*hbdomain.Summary, error) {
	return h.setPaused(ctx, slug, false, now)
}

func (h *Handler) Delete(ctx context.Context, slug string) error {
	if err := hbdomain.ValidateSlug(slug); err != nil {
		return err
	}

	if err := h.store.Delete(ctx, slug); err != nil {
		return err
	}

	h.logl.Info.Printf("deleted %s", slug)

	return nil
}

// sorted by slug
func (h *Handler) List(ctx context.Context, now time.Time) ([]hbdomain.Summary, error) {
	monitors, err := h.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(monitors, func(i, j int) bool { return monitors[i].Slug < monitors[j].Slug })

	summaries := []hbdomain.Summary{}
	for _, mon := range monitors {
		summaries = append(summaries, mon.Summary(now))
	}

	return summaries, nil
}

func (h *Handler) setPaused(ctx context.Context, slug string, paused bool, now time.Time) (*hbdomain.Summary, error) {
	if err := hbdomain.ValidateSlug(slug); err != nil {
		return nil, err
	}

	mon, err := h.store.SetPaused(ctx, slug, paused)
	if err != nil {
		return nil, err
	}

	h.logl.Info.Printf("%s paused=%v", slug, paused)

	return summary(mon, now), nil
}

func summary(mon *hbdomain.Monitor, now time.Time) *hbdomain.Summary {
	sum := mon.Summary(now)
	return &sum
}
