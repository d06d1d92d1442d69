package main

import (
	"context"
	"fmt"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/function61/gokit/logex"
	"github.com/function61/lambda-heartbeat/pkg/hbalert"
	"github.com/function61/lambda-heartbeat/pkg/hbcheck"
	"github.com/function61/lambda-heartbeat/pkg/hbmetrics"
	"github.com/function61/lambda-heartbeat/pkg/hbnotify"
	"github.com/function61/lambda-heartbeat/pkg/hbping"
	"github.com/function61/lambda-heartbeat/pkg/hbstore"
	"github.com/prometheus/client_golang/prometheus"
	"log"
	"os"
)

// everything is resolved from ENV so the same binary works in Lambda and standalone
type config struct {
	MonitorsTable         string
	KeysTable             string
	Region                string
	BoltDbPath            string // non-empty => local file instead of DynamoDB
	TelegramBotToken      string
	TelegramChatId        string
	TelegramBotTokenParam string
	TelegramChatIdParam   string
	AlertTopic            string
}

func configFromEnv() config {
	return config{
		MonitorsTable:         envOr("MONITORS_TABLE", "heartbeat-monitors"),
		KeysTable:             envOr("KEYS_TABLE", "heartbeat-api-keys"),
		Region:                envOr("AWS_REGION", "us-east-1"),
		BoltDbPath:            os.Getenv("BOLT_DB_PATH"),
		TelegramBotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatId:        os.Getenv("TELEGRAM_CHAT_ID"),
		TelegramBotTokenParam: os.Getenv("TELEGRAM_BOT_TOKEN_PARAM"),
		TelegramChatIdParam:   os.Getenv("TELEGRAM_CHAT_ID_PARAM"),
		AlertTopic:            os.Getenv("ALERT_TOPIC"),
	}
}

type app struct {
	store    hbstore.Store
	keys     hbstore.KeyStore
	handler  *hbping.Handler
	scanner  *hbcheck.Scanner
	registry *prometheus.Registry
	logger   *log.Logger
	close    func() error
}

func getApp(ctx context.Context, logger *log.Logger) (*app, error) {
	return newApp(ctx, configFromEnv(), logger)
}

func newApp(ctx context.Context, conf config, logger *log.Logger) (*app, error) {
	// lazily, since the pure bolt + log notifier setup needs no AWS at all
	var awsSession *session.Session
	getAwsSession := func() (*session.Session, error) {
		if awsSession != nil {
			return awsSession, nil
		}

		var err error
		awsSession, err = session.NewSession(aws.NewConfig().WithRegion(conf.Region))
		return awsSession, err
	}

	var store hbstore.Store
	var keys hbstore.KeyStore
	closeStore := func() error { return nil }

	if conf.BoltDbPath != "" {
		db, err := hbstore.OpenBolt(conf.BoltDbPath)
		if err != nil {
			return nil, err
		}

		store = hbstore.NewBoltStore(db, nil)
		keys = hbstore.NewBoltKeyStore(db)
		closeStore = db.Close
	} else {
		sess, err := getAwsSession()
		if err != nil {
			return nil, err
		}

		db := dynamodb.New(sess)

		store = hbstore.NewDynamoStore(db, conf.MonitorsTable)
		keys = hbstore.NewDynamoKeyStore(db, conf.KeysTable)
	}

	notifier, err := newNotifier(ctx, conf, getAwsSession, logger)
	if err != nil {
		closeStore()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics := hbmetrics.New(registry)

	dispatcher := hbalert.New(store, notifier, metrics, logex.Prefix("alert", logger))

	return &app{
		store:    store,
		keys:     keys,
		handler:  hbping.New(store, dispatcher, metrics, logex.Prefix("ping", logger)),
		scanner:  hbcheck.New(store, dispatcher, metrics, logex.Prefix("check", logger)),
		registry: registry,
		logger:   logger,
		close:    closeStore,
	}, nil
}

// first configured of: Telegram from ENV, SNS topic, Telegram from SSM, log
func newNotifier(
	ctx context.Context,
	conf config,
	getAwsSession func() (*session.Session, error),
	logger *log.Logger,
) (hbnotify.Notifier, error) {
	switch {
	case conf.TelegramBotToken != "" || conf.TelegramChatId != "":
		if conf.TelegramBotToken == "" || conf.TelegramChatId == "" {
			return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be given together")
		}

		return hbnotify.NewTelegram(conf.TelegramBotToken, conf.TelegramChatId), nil
	case conf.AlertTopic != "":
		sess, err := getAwsSession()
		if err != nil {
			return nil, err
		}

		return hbnotify.NewSNS(sns.New(sess), conf.AlertTopic), nil
	case conf.TelegramBotTokenParam != "" || conf.TelegramChatIdParam != "":
		sess, err := getAwsSession()
		if err != nil {
			return nil, err
		}

		return hbnotify.TelegramFromParameterStore(
			ctx,
			ssm.New(sess),
			firstNonEmpty(conf.TelegramBotTokenParam, hbnotify.DefaultBotTokenParam),
			firstNonEmpty(conf.TelegramChatIdParam, hbnotify.DefaultChatIdParam))
	default:
		logex.Levels(logger).Info.Println("no notification channel configured, notifications go to log")

		return hbnotify.NewLogNotifier(logex.Prefix("notify", logger)), nil
	}
}

func envOr(key string, fallback string) string {
	return firstNonEmpty(os.Getenv(key), fallback)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}

	return ""
}
