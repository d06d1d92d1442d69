package main

import (
	"context"
	"fmt"
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/ossignal"
	"github.com/function61/gokit/stringutils"
	"github.com/function61/lambda-heartbeat/pkg/hbdomain"
	"github.com/scylladb/termtables"
	"github.com/spf13/cobra"
	"time"
)

func apiKeyEntry() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
	}

	description := ""

	mkCmd := &cobra.Command{
		Use:   "mk",
		Short: "Create an API key",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(apiKeyCreate(
				ossignal.InterruptOrTerminateBackgroundCtx(nil),
				description))
		},
	}
	mkCmd.Flags().StringVarP(&description, "description", "d", description, "Who or what uses this key")
	cmd.AddCommand(mkCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List API keys",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(apiKeyList(
				ossignal.InterruptOrTerminateBackgroundCtx(nil)))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm [key]",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			exitIfError(apiKeyDelete(
				ossignal.InterruptOrTerminateBackgroundCtx(nil),
				args[0]))
		},
	})

	return cmd
}

func apiKeyCreate(ctx context.Context, description string) error {
	app, err := getApp(ctx, logex.StandardLogger())
	if err != nil {
		return err
	}
	defer app.close()

	key := hbdomain.NewAPIKey(description, time.Now())

	if err := app.keys.PutKey(ctx, key); err != nil {
		return err
	}

	fmt.Println(key.Key)

	return nil
}

func apiKeyList(ctx context.Context) error {
	app, err := getApp(ctx, logex.StandardLogger())
	if err != nil {
		return err
	}
	defer app.close()

	keys, err := app.keys.ListKeys(ctx)
	if err != nil {
		return err
	}

	view := termtables.CreateTable()
	view.AddHeaders("Key", "Created", "Description")

	for _, key := range keys {
		view.AddRow(
			stringutils.Truncate(key.Key, 8), // enough to identify, not enough to use
			key.CreatedAt.Format(time.RFC3339),
			key.Description)
	}

	fmt.Println(view.Render())

	return nil
}

func apiKeyDelete(ctx context.Context, key string) error {
	app, err := getApp(ctx, logex.StandardLogger())
	if err != nil {
		return err
	}
	defer app.close()

	return app.keys.DeleteKey(ctx, key)
}
