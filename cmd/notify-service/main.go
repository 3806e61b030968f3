package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/referral-intake/platform/pkg/blob"
	"github.com/referral-intake/platform/pkg/common/config"
	"github.com/referral-intake/platform/pkg/common/kafka"
	"github.com/referral-intake/platform/pkg/common/logger"
	"github.com/referral-intake/platform/pkg/notify"
)

func main() {
	logger.Init()
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s3Client, err := blob.NewClient(ctx, cfg.StorageRegion, cfg.StorageEndpoint)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to configure blob storage")
	}
	blobs := blob.NewS3Store(s3Client, blob.BucketsFromConfig(cfg))

	opts := notify.OptionsFromConfig(cfg)
	svc := notify.NewService(blobs, notify.NewGraphSender(opts, nil), opts.From, cfg.NotifyRecipients)

	consumer := kafka.NewConsumer(cfg, cfg.KafkaRoutedTopic, cfg.KafkaGroupID+"-notify")
	defer consumer.Close()

	go func() {
		logger.Log.WithField("topic", cfg.KafkaRoutedTopic).Info("Notify Service started")
		if err := consumer.Consume(ctx, svc.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Log.WithError(err).Error("routed consumer stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Notify Service...")
	cancel()
	logger.Log.Info("Notify Service stopped")
}
