package main

import (
	"context"
	"fmt"
	"github.com/function61/gokit/envvar"
	"github.com/function61/gokit/ossignal"
	"github.com/function61/lambda-heartbeat/pkg/hbdomain"
	"github.com/function61/lambda-heartbeat/pkg/heartbeatclient"
	"github.com/spf13/cobra"
)

// for jobs and operators: talks to the REST API with $HEARTBEAT_URL and $HEARTBEAT_API_KEY
func clientEntry() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage monitors over the REST API",
	}

	interval := ""

	pingCmd := &cobra.Command{
		Use:   "ping [slug]",
		Short: "Report that the job ran successfully",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(withClient(printSummary(func(ctx context.Context, client *heartbeatclient.Client) (*hbdomain.Summary, error) {
				return client.Ping(ctx, args[0], interval)
			})))
		},
	}
	pingCmd.Flags().StringVarP(&interval, "interval", "i", interval, "Expected ping interval (default: keep current)")
	cmd.AddCommand(pingCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "fail [slug]",
		Short: "Report that the job failed",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(withClient(printSummary(func(ctx context.Context, client *heartbeatclient.Client) (*hbdomain.Summary, error) {
				return client.Fail(ctx, args[0])
			})))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "pause [slug]",
		Short: "Suppress alerts for a monitor",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(withClient(printSummary(func(ctx context.Context, client *heartbeatclient.Client) (*hbdomain.Summary, error) {
				return client.Pause(ctx, args[0])
			})))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "unpause [slug]",
		Short: "Resume alerts for a monitor",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(withClient(printSummary(func(ctx context.Context, client *heartbeatclient.Client) (*hbdomain.Summary, error) {
				return client.Unpause(ctx, args[0])
			})))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List monitors",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(withClient(func(ctx context.Context, client *heartbeatclient.Client) error {
				summaries, err := client.List(ctx)
				if err != nil {
					return err
				}

				fmt.Println(summariesTable(summaries))

				return nil
			}))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm [slug]",
		Short: "Delete a monitor",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(withClient(func(ctx context.Context, client *heartbeatclient.Client) error {
				return client.Delete(ctx, args[0])
			}))
		},
	})

	return cmd
}

func withClient(fn func(context.Context, *heartbeatclient.Client) error) error {
	baseUrl, err := envvar.Required("HEARTBEAT_URL")
	if err != nil {
		return err
	}

	apiKey, err := envvar.Required("HEARTBEAT_API_KEY")
	if err != nil {
		return err
	}

	return fn(ossignal.InterruptOrTerminateBackgroundCtx(nil), heartbeatclient.New(baseUrl, apiKey))
}

func printSummary(
	fn func(context.Context, *heartbeatclient.Client) (*hbdomain.Summary, error),
) func(context.Context, *heartbeatclient.Client) error {
	return func(ctx context.Context, client *heartbeatclient.Client) error {
		sum, err := fn(ctx, client)
		if err != nil {
			return err
		}

		fmt.Printf("%s: %s, next due %s\n", sum.Slug, sum.Status, sum.NextDueAt.Format("2006-01-02 15:04 MST"))

		return nil
	}
}
