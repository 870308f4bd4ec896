package main

import (
	"context"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"

	backend "github.com/Alino22Git/Document-Managment-System"
	"github.com/Alino22Git/Document-Managment-System/pkg/blob"
	"github.com/Alino22Git/Document-Managment-System/pkg/blob/minio"
	"github.com/Alino22Git/Document-Managment-System/pkg/docstore/postgres"
	"github.com/Alino22Git/Document-Managment-System/pkg/logutils"
	"github.com/Alino22Git/Document-Managment-System/pkg/messaging"
	"github.com/Alino22Git/Document-Managment-System/pkg/search"
	"github.com/Alino22Git/Document-Managment-System/pkg/upload"
)

var args struct {
	ListenAddr string `arg:"-L,--listen-addr,env:LISTEN_ADDR" default:"0.0.0.0:8080"`
	LogLevel   string `arg:"--log-level,env:LOG_LEVEL" default:"info"`

	AmqpHost       string `arg:"--amqp-host,env:AMQP_HOST" default:"rabbitmq"`
	AmqpPort       int    `arg:"--amqp-port,env:AMQP_PORT" default:"5672"`
	AmqpUsername   string `arg:"--amqp-username,env:AMQP_USERNAME" default:"guest"`
	AmqpPassword   string `arg:"--amqp-password,env:AMQP_PASSWORD" default:"guest"`
	AmqpRetryCount int    `arg:"--amqp-retry-count,env:AMQP_RETRY_COUNT" default:"50"`
	AmqpRetryDelay int    `arg:"--amqp-retry-delay,env:AMQP_RETRY_DELAY" default:"5" help:"Initial reconnect delay in seconds"`

	MinioEndpoint  string `arg:"--minio-endpoint,env:MINIO_ENDPOINT" default:"minio:9000"`
	MinioAccessKey string `arg:"--minio-access-key,env:MINIO_ACCESS_KEY,required"`
	MinioSecretKey string `arg:"--minio-secret-key,env:MINIO_SECRET_KEY,required"`
	MinioBucket    string `arg:"--minio-bucket,env:MINIO_BUCKET" default:"uploads"`
	MinioUseSSL    bool   `arg:"--minio-use-ssl,env:MINIO_USE_SSL"`

	PostgresDsn string `arg:"--postgres-dsn,env:POSTGRES_DSN,required"`

	OsAddr               string `arg:"--opensearch-addr,required,env:OPENSEARCH_ADDR"`
	OsIndex              string `arg:"--opensearch-index,env:OPENSEARCH_INDEX" default:"documents"`
	OsInsecureSkipVerify bool   `arg:"--opensearch-insecure-skip-verify,env:OPENSEARCH_SKIP_TLS"`
	OsPassword           string `arg:"--opensearch-password,env:OPENSEARCH_PASSWORD"`
	OsUsername           string `arg:"--opensearch-username,env:OPENSEARCH_USERNAME"`
}

var log = logrus.StandardLogger()

func main() {
	arg.MustParse(&args)
	logutils.SetLoggerLevel(args.LogLevel)
	ctx := context.Background()

	channel, err := messaging.Connect(ctx, amqpConfig())
	if err != nil {
		log.Fatalf("connect to broker: %v", err)
	}
	defer channel.Close()
	if err := channel.DeclareTopology(); err != nil {
		log.Fatalf("declare topology: %v", err)
	}

	store, err := postgres.New(args.PostgresDsn)
	if err != nil {
		log.Fatalf("create document store: %v", err)
	}

	searchClient, err := search.New(args.OsAddr, searchOptions()...)
	if err != nil {
		log.Fatalf("create search client: %v", err)
	}
	if err := searchClient.EnsureIndex(ctx); err != nil {
		log.Fatalf("ensure search index: %v", err)
	}

	blobStore := blob.SetupMinioStorage(minio.Config{
		Endpoint:  args.MinioEndpoint,
		AccessKey: args.MinioAccessKey,
		SecretKey: args.MinioSecretKey,
		Bucket:    args.MinioBucket,
		UseSSL:    args.MinioUseSSL,
	})

	uploader := upload.New(blobStore, store, channel)
	s := backend.New(uploader, store, searchClient)
	if err := s.Run(args.ListenAddr); err != nil {
		log.Fatalf("listen: %v", err)
	}
}

func amqpConfig() messaging.Config {
	return messaging.Config{
		Host:       args.AmqpHost,
		Port:       args.AmqpPort,
		Username:   args.AmqpUsername,
		Password:   args.AmqpPassword,
		RetryCount: args.AmqpRetryCount,
		RetryDelay: time.Duration(args.AmqpRetryDelay) * time.Second,
	}
}

func searchOptions() []search.Option {
	opts := []search.Option{
		search.WithIndex(args.OsIndex),
		search.WithCredentials(args.OsUsername, args.OsPassword),
	}
	if args.OsInsecureSkipVerify {
		opts = append(opts, search.WithInsecureSkipTLS())
	}
	return opts
}
