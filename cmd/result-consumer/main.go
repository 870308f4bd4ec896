package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Alino22Git/Document-Managment-System/pkg/consumer"
	"github.com/Alino22Git/Document-Managment-System/pkg/docstore/postgres"
	"github.com/Alino22Git/Document-Managment-System/pkg/logutils"
	"github.com/Alino22Git/Document-Managment-System/pkg/messaging"
	"github.com/Alino22Git/Document-Managment-System/pkg/search"
)

var args struct {
	LogLevel string `arg:"--log-level,env:LOG_LEVEL" default:"info"`

	AmqpHost       string `arg:"--amqp-host,env:AMQP_HOST" default:"rabbitmq"`
	AmqpPort       int    `arg:"--amqp-port,env:AMQP_PORT" default:"5672"`
	AmqpUsername   string `arg:"--amqp-username,env:AMQP_USERNAME" default:"guest"`
	AmqpPassword   string `arg:"--amqp-password,env:AMQP_PASSWORD" default:"guest"`
	AmqpRetryCount int    `arg:"--amqp-retry-count,env:AMQP_RETRY_COUNT" default:"50"`
	AmqpRetryDelay int    `arg:"--amqp-retry-delay,env:AMQP_RETRY_DELAY" default:"5" help:"Initial reconnect delay in seconds"`

	PostgresDsn string `arg:"--postgres-dsn,env:POSTGRES_DSN,required"`

	OsAddr               string `arg:"--opensearch-addr,required,env:OPENSEARCH_ADDR"`
	OsIndex              string `arg:"--opensearch-index,env:OPENSEARCH_INDEX" default:"documents"`
	OsInsecureSkipVerify bool   `arg:"--opensearch-insecure-skip-verify,env:OPENSEARCH_SKIP_TLS"`
	OsPassword           string `arg:"--opensearch-password,env:OPENSEARCH_PASSWORD"`
	OsUsername           string `arg:"--opensearch-username,env:OPENSEARCH_USERNAME"`

	Workers int `arg:"-w,--workers,env:WORKERS" default:"1"`
}

var log = logrus.StandardLogger()

func main() {
	arg.MustParse(&args)
	logutils.SetLoggerLevel(args.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	channel, err := messaging.Connect(ctx, messaging.Config{
		Host:       args.AmqpHost,
		Port:       args.AmqpPort,
		Username:   args.AmqpUsername,
		Password:   args.AmqpPassword,
		RetryCount: args.AmqpRetryCount,
		RetryDelay: time.Duration(args.AmqpRetryDelay) * time.Second,
	})
	if err != nil {
		log.Fatalf("connect to broker: %v", err)
	}
	defer channel.Close()
	if err := channel.DeclareTopology(); err != nil {
		log.Fatalf("declare topology: %v", err)
	}

	// Prefetch is per channel, the dead-letter subscription gets its own.
	dlChannel, err := channel.NewChannel()
	if err != nil {
		log.Fatalf("open dead-letter channel: %v", err)
	}
	defer dlChannel.Close()

	store, err := postgres.New(args.PostgresDsn)
	if err != nil {
		log.Fatalf("create document store: %v", err)
	}

	opts := []search.Option{
		search.WithIndex(args.OsIndex),
		search.WithCredentials(args.OsUsername, args.OsPassword),
	}
	if args.OsInsecureSkipVerify {
		opts = append(opts, search.WithInsecureSkipTLS())
	}
	searchClient, err := search.New(args.OsAddr, opts...)
	if err != nil {
		log.Fatalf("create search client: %v", err)
	}
	if err := searchClient.EnsureIndex(ctx); err != nil {
		log.Fatalf("ensure search index: %v", err)
	}

	c := consumer.New(store, searchClient)

	log.Infof("result consumer started")
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return channel.Subscribe(ctx, messaging.OcrResultQueue, args.Workers, c.Handle)
	})
	g.Go(func() error {
		return dlChannel.Subscribe(ctx, messaging.DeadLetterQueue, 1, c.HandleDeadLetter)
	})
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatalf("subscription ended: %v", err)
	}
}
