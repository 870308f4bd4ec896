package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/sirupsen/logrus"

	"github.com/Alino22Git/Document-Managment-System/pkg/blob"
	"github.com/Alino22Git/Document-Managment-System/pkg/blob/minio"
	"github.com/Alino22Git/Document-Managment-System/pkg/logutils"
	"github.com/Alino22Git/Document-Managment-System/pkg/messaging"
	"github.com/Alino22Git/Document-Managment-System/pkg/ocr"
	"github.com/Alino22Git/Document-Managment-System/pkg/worker"
)

var args struct {
	LogLevel string `arg:"--log-level,env:LOG_LEVEL" default:"info"`

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

	Workers        int    `arg:"-w,--workers,env:WORKERS" default:"1"`
	Languages      string `arg:"--languages,env:OCR_LANGUAGES" default:"eng" help:"Comma-separated Tesseract languages"`
	DPI            int    `arg:"--dpi,env:OCR_DPI" default:"350"`
	MagickBinary   string `arg:"--magick-binary,env:MAGICK_BINARY" default:"magick"`
	TempDir        string `arg:"--temp-dir,env:TEMP_DIR"`
	TimeoutSeconds int    `arg:"--timeout,env:OCR_TIMEOUT" default:"120" help:"Per-message processing timeout in seconds"`
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

	blobStore := blob.SetupMinioStorage(minio.Config{
		Endpoint:  args.MinioEndpoint,
		AccessKey: args.MinioAccessKey,
		SecretKey: args.MinioSecretKey,
		Bucket:    args.MinioBucket,
		UseSSL:    args.MinioUseSSL,
	})

	engine := ocr.NewTesseract(strings.Split(args.Languages, ","), args.DPI)
	processor := ocr.NewProcessor(&ocr.Magick{Binary: args.MagickBinary}, engine, ocr.WithDPI(args.DPI))

	opts := []worker.Option{
		worker.WithTimeout(time.Duration(args.TimeoutSeconds) * time.Second),
	}
	if args.TempDir != "" {
		opts = append(opts, worker.WithTempDir(args.TempDir))
	}
	w := worker.New(blobStore, processor, channel, opts...)

	log.Infof("OCR worker started")
	if err := channel.Subscribe(ctx, messaging.DocumentCreatedQueue, args.Workers, w.Handle); err != nil && ctx.Err() == nil {
		log.Fatalf("subscription ended: %v", err)
	}
}
