package notify

import (
	"context"
	"fmt"

	"github.com/referral-intake/platform/pkg/common/kafka"
	"github.com/referral-intake/platform/pkg/common/logger"
	"github.com/referral-intake/platform/pkg/common/models"
	"github.com/referral-intake/platform/pkg/observability/metrics"
)

type BlobReader interface {
	Read(ctx context.Context, c models.Container, name string) ([]byte, string, error)
}

type Sender interface {
	Send(ctx context.Context, req SendMailRequest) error
}

type Service struct {
	blobs      BlobReader
	sender     Sender
	from       string
	recipients []string
}

func NewService(blobs BlobReader, sender Sender, from string, recipients []string) *Service {
	return &Service{blobs: blobs, sender: sender, from: from, recipients: recipients}
}

// HandleEvent mails the configured recipients about documents routed to
// the failed container. Other routing outcomes are ignored.
func (s *Service) HandleEvent(ctx context.Context, event models.Event) error {
	routed, err := kafka.DecodeRouted(event)
	if err != nil {
		logger.WithField("event_id", event.ID).WithError(err).Warn("skipping event")
		return nil
	}
	if routed.Container != models.ContainerFailed {
		return nil
	}
	if err := s.Notify(ctx, routed); err != nil {
		logger.WithDocument(routed.Name).WithError(err).Error("failed referral notification not sent")
	}
	return nil
}

func (s *Service) Notify(ctx context.Context, routed kafka.Routed) error {
	log := logger.WithDocument(routed.Name)
	if len(s.recipients) == 0 {
		log.Warn("no notification recipients configured")
		return nil
	}

	content, contentType, err := s.blobs.Read(ctx, models.ContainerFailed, routed.Name)
	if err != nil {
		return fmt.Errorf("reading failed referral %s: %w", routed.Name, err)
	}

	req, err := BuildMessage(s.from, s.recipients, Failure{
		Name:        routed.Name,
		Destination: routed.DestinationFaxNumber,
		ContentType: contentType,
		Content:     content,
	})
	if err != nil {
		return err
	}
	if err := s.sender.Send(ctx, req); err != nil {
		return fmt.Errorf("notifying about %s: %w", routed.Name, err)
	}

	metrics.ObserveNotificationSent()
	log.WithField("recipients", len(s.recipients)).Info("failed referral notification sent")
	return nil
}
