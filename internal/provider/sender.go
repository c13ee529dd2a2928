package provider

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Sender delivers a plain SMS body to a phone number.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// SNSPublisher abstracts the AWS SNS Publish call for testability.
type SNSPublisher interface {
	Publish(ctx context.Context, phoneNumber, message string) (messageID string, err error)
}

// SNSSender sends SMS via AWS SNS.
type SNSSender struct {
	publisher SNSPublisher
	logger    *slog.Logger
}

// NewSNSSender creates an SNSSender with the given publisher.
func NewSNSSender(publisher SNSPublisher, logger *slog.Logger) *SNSSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &SNSSender{publisher: publisher, logger: logger}
}

func (s *SNSSender) Send(ctx context.Context, to, body string) error {
	messageID, err := s.publisher.Publish(ctx, to, body)
	if err != nil {
		return fmt.Errorf("sns: publish: %w", err)
	}
	s.logger.Debug("sns message published", "message_id", messageID)
	return nil
}

type snsPublisherAdapter struct {
	client *sns.Client
}

// NewSNSPublisher loads the default AWS credential chain for region and wraps an SNS client.
func NewSNSPublisher(ctx context.Context, region string) (SNSPublisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &snsPublisherAdapter{client: sns.NewFromConfig(cfg)}, nil
}

func (a *snsPublisherAdapter) Publish(ctx context.Context, phoneNumber, message string) (string, error) {
	out, err := a.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: &phoneNumber,
		Message:     &message,
	})
	if err != nil {
		return "", err
	}
	if out.MessageId == nil {
		return "", nil
	}
	return *out.MessageId, nil
}

// LogSender logs SMS bodies instead of delivering them. Development only: the body contains the code.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender. If logger is nil, slog.Default() is used.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, to, body string) error {
	s.logger.Info("sms not delivered (log sender)", "to", to, "body", body)
	return nil
}
