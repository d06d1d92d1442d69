package main

import (
	"context"
	"fmt"
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/ossignal"
	"github.com/spf13/cobra"
	"log"
	"time"
)

// runs every minute
func handleCloudwatchScheduledEvent(ctx context.Context, app *app, now time.Time) error {
	_, err := app.scanner.Run(ctx, now)
	return err
}

// what Lambda would do on a scheduler event, with a freshly built app
func lambdaSchedulerOnce(ctx context.Context, now time.Time, logger *log.Logger) error {
	app, err := getApp(ctx, logger)
	if err != nil {
		return err
	}
	defer app.close()

	return handleCloudwatchScheduledEvent(ctx, app, now)
}

func checkEntry() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Scan once for overdue monitors and send alerts",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			logger := logex.StandardLogger()

			exitIfError(checkOnce(
				ossignal.InterruptOrTerminateBackgroundCtx(logger),
				logger))
		},
	}
}

func checkOnce(ctx context.Context, logger *log.Logger) error {
	app, err := getApp(ctx, logger)
	if err != nil {
		return err
	}
	defer app.close()

	report, err := app.scanner.Run(ctx, time.Now())
	if err != nil {
		return err
	}

	fmt.Println(report.String())

	return nil
}

// in-process equivalent of the Lambda schedule. a failed pass is logged and retried on
// the next tick.
func runCheckerLoop(ctx context.Context, app *app, interval time.Duration) error {
	logl := logex.Levels(logex.Prefix("checker", app.logger))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if _, err := app.scanner.Run(ctx, now); err != nil {
				logl.Error.Printf("scan failed: %v", err)
			}
		}
	}
}
