package main

import (
	"fmt"
	"github.com/function61/gokit/dynversion"
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/ossignal"
	"github.com/spf13/cobra"
	"os"
	"time"
)

func main() {
	app := &cobra.Command{
		Use:     os.Args[0],
		Short:   "Heartbeat monitor for cron jobs and other periodic work",
		Version: dynversion.Version,
	}

	app.AddCommand(monitorEntry())

	app.AddCommand(apiKeyEntry())

	app.AddCommand(checkEntry())

	app.AddCommand(restApiCliEntry())

	app.AddCommand(clientEntry())

	app.AddCommand(&cobra.Command{
		Use:    "lambda",
		Hidden: true,
		Run: func(*cobra.Command, []string) {
			lambdaHandler()
		},
	})

	app.AddCommand(&cobra.Command{
		Use:    "lambda-scheduler",
		Short:  "Run what Lambda would invoke in response to scheduler event",
		Hidden: true,
		Run: func(*cobra.Command, []string) {
			logger := logex.StandardLogger()

			exitIfError(lambdaSchedulerOnce(
				ossignal.InterruptOrTerminateBackgroundCtx(logger),
				time.Now(),
				logger))
		},
	})

	exitIfError(app.Execute())
}

func exitIfError(err error) {
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
