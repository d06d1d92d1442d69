package main

import (
	"context"
	"fmt"
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/ossignal"
	"github.com/function61/lambda-heartbeat/pkg/hbdomain"
	"github.com/scylladb/termtables"
	"github.com/spf13/cobra"
	"time"
)

// operates on the store directly, bypassing the REST API
func monitorEntry() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Manage monitors",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List monitors",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(monitorList(
				ossignal.InterruptOrTerminateBackgroundCtx(nil)))
		},
	})

	interval := ""

	pingCmd := &cobra.Command{
		Use:   "ping [slug]",
		Short: "Ping a monitor (creates it if it doesn't exist)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(withHandler(func(ctx context.Context, app *app) (*hbdomain.Summary, error) {
				return app.handler.Ping(ctx, args[0], interval, time.Now())
			}))
		},
	}
	pingCmd.Flags().StringVarP(&interval, "interval", "i", interval, "Expected ping interval, e.g. 5m, 1h30m or 7d (default: keep current)")
	cmd.AddCommand(pingCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "fail [slug]",
		Short: "Report failure, i.e. make the monitor overdue immediately",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(withHandler(func(ctx context.Context, app *app) (*hbdomain.Summary, error) {
				return app.handler.Fail(ctx, args[0], time.Now())
			}))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "pause [slug]",
		Short: "Stop alerting about a monitor",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(withHandler(func(ctx context.Context, app *app) (*hbdomain.Summary, error) {
				return app.handler.Pause(ctx, args[0], time.Now())
			}))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "unpause [slug]",
		Short: "Resume alerting about a monitor",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(withHandler(func(ctx context.Context, app *app) (*hbdomain.Summary, error) {
				return app.handler.Unpause(ctx, args[0], time.Now())
			}))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm [slug]",
		Short: "Delete a monitor",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(monitorDelete(
				ossignal.InterruptOrTerminateBackgroundCtx(nil),
				args[0]))
		},
	})

	return cmd
}

func monitorList(ctx context.Context) error {
	app, err := getApp(ctx, logex.StandardLogger())
	if err != nil {
		return err
	}
	defer app.close()

	summaries, err := app.handler.List(ctx, time.Now())
	if err != nil {
		return err
	}

	fmt.Println(summariesTable(summaries))

	return nil
}

func monitorDelete(ctx context.Context, slug string) error {
	app, err := getApp(ctx, logex.StandardLogger())
	if err != nil {
		return err
	}
	defer app.close()

	return app.handler.Delete(ctx, slug)
}

func withHandler(fn func(ctx context.Context, app *app) (*hbdomain.Summary, error)) error {
	logger := logex.StandardLogger()
	ctx := ossignal.InterruptOrTerminateBackgroundCtx(logger)

	app, err := getApp(ctx, logger)
	if err != nil {
		return err
	}
	defer app.close()

	sum, err := fn(ctx, app)
	if err != nil {
		return err
	}

	fmt.Println(summariesTable([]hbdomain.Summary{*sum}))

	return nil
}

func summariesTable(summaries []hbdomain.Summary) string {
	view := termtables.CreateTable()
	view.AddHeaders("Slug", "Status", "Interval", "Last ping", "Next due", "Last alert")

	for _, sum := range summaries {
		lastAlert := ""
		if sum.LastAlertAt != nil {
			lastAlert = sum.LastAlertAt.Format(time.RFC3339)
		}

		view.AddRow(
			sum.Slug,
			string(sum.Status),
			sum.Interval,
			sum.LastPingAt.Format(time.RFC3339),
			sum.NextDueAt.Format(time.RFC3339),
			lastAlert)
	}

	return view.Render()
}
