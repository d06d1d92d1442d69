// Scheduled pass that finds overdue monitors and alerts about them
package hbcheck

import (
	"context"
	"errors"
	"fmt"
	"github.com/function61/gokit/logex"
	"github.com/function61/lambda-heartbeat/pkg/hbalert"
	"github.com/function61/lambda-heartbeat/pkg/hbdomain"
	"github.com/function61/lambda-heartbeat/pkg/hbmetrics"
	"github.com/function61/lambda-heartbeat/pkg/hbstore"
	"github.com/function61/lambda-heartbeat/pkg/workpool"
	"log"
	"sync"
	"time"
)

const alertConcurrency = 3

type outcome int

const (
	outcomeAlerted outcome = iota
	outcomeSkipped
	outcomeRaced
	outcomeFailed
)

type Report struct {
	Candidates int `json:"candidates"`
	Alerted    int `json:"alerted"`
	Skipped    int `json:"skipped"` // alerted recently enough
	Raced      int `json:"raced"`   // pinged between our read and our alert
	Failed     int `json:"failed"`
}

func (r Report) String() string {
	return fmt.Sprintf(
		"candidates=%d alerted=%d skipped=%d raced=%d failed=%d",
		r.Candidates,
		r.Alerted,
		r.Skipped,
		r.Raced,
		r.Failed)
}

type Scanner struct {
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
) *Scanner {
	return &Scanner{
		store:      store,
		dispatcher: dispatcher,
		metrics:    metrics,
		logl:       logex.Levels(logger),
	}
}

// Run does one pass. Failures of individual monitors are logged and counted, only a
// failure to list candidates fails the whole pass.
func (s *Scanner) Run(ctx context.Context, now time.Time) (*Report, error) {
	started := time.Now()

	candidates, err := s.store.ScanOverdue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("ScanOverdue: %w", err)
	}

	report := &Report{Candidates: len(candidates)}
	reportMu := sync.Mutex{}

	workpool.ForEach(candidates, alertConcurrency, func(mon hbdomain.Monitor) {
		outcome := s.handleOne(ctx, mon, now)

		reportMu.Lock()
		defer reportMu.Unlock()

		switch outcome {
		case outcomeAlerted:
			report.Alerted++
		case outcomeSkipped:
			report.Skipped++
		case outcomeRaced:
			report.Raced++
		default:
			report.Failed++
		}
	})

	s.metrics.ObserveScan(time.Since(started), report.Alerted, report.Skipped, report.Raced, report.Failed)

	s.logl.Info.Printf("scan done: %s", report)

	return report, nil
}

func (s *Scanner) handleOne(ctx context.Context, mon hbdomain.Monitor, now time.Time) outcome {
	if !hbdomain.ShouldAlert(mon, now) {
		s.logl.Debug.Printf("%s overdue, alerted recently", mon.Slug)
		return outcomeSkipped
	}

	if _, err := s.dispatcher.SendOverdue(ctx, mon, now); err != nil {
		if errors.Is(err, hbstore.ErrPreconditionFailed) {
			s.logl.Info.Printf("%s pinged or paused during scan, alert discarded", mon.Slug)
			return outcomeRaced
		}

		s.logl.Error.Printf("%s: %v", mon.Slug, err)
		return outcomeFailed
	}

	return outcomeAlerted
}
