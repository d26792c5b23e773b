package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"

	"verify-service/internal/config"
	"verify-service/internal/models"
	"verify-service/internal/util"
)

// Gateway delivers a one-time code to a target over the channel matching
// the otp type. Implementations must never log the plaintext code.
type Gateway interface {
	Send(ctx context.Context, target, otpType, code string) error
}

// NewGateway selects the provider from config. Anything other than "aws"
// falls back to the noop gateway.
func NewGateway(cfg *config.Config, logger *zap.Logger) (Gateway, error) {
	if cfg.Delivery.Provider == "aws" {
		return NewAWSGateway(cfg, logger)
	}
	return NewNoopGateway(logger), nil
}

// AWSGateway sends SMS through SNS and email through SESv2.
type AWSGateway struct {
	snsClient *sns.Client
	sesClient *sesv2.Client
	config    *config.DeliveryConfig
}

func NewAWSGateway(cfg *config.Config, logger *zap.Logger) (*AWSGateway, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Delivery.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	util.Info("AWS delivery gateway initialized",
		zap.String("region", cfg.Delivery.Region))

	return &AWSGateway{
		snsClient: sns.NewFromConfig(awsCfg),
		sesClient: sesv2.NewFromConfig(awsCfg),
		config:    &cfg.Delivery,
	}, nil
}

func (g *AWSGateway) Send(ctx context.Context, target, otpType, code string) error {
	switch otpType {
	case models.OTPTypeMobile:
		return g.sendSMS(ctx, target, code)
	case models.OTPTypeEmail:
		return g.sendEmail(ctx, target, code)
	default:
		return fmt.Errorf("unsupported otp type: %s", otpType)
	}
}

func (g *AWSGateway) sendSMS(ctx context.Context, target, code string) error {
	message := fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code)

	input := &sns.PublishInput{
		PhoneNumber: aws.String(target),
		Message:     aws.String(message),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(g.config.SMSSenderID),
			},
		},
	}

	if _, err := g.snsClient.Publish(ctx, input); err != nil {
		util.Error("Failed to send SMS", zap.Error(err))
		return fmt.Errorf("failed to send SMS: %w", err)
	}

	util.Info("Verification SMS sent")
	return nil
}

func (g *AWSGateway) sendEmail(ctx context.Context, target, code string) error {
	subject := "Your verification code"
	body := fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code)

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(g.config.EmailSender),
		Destination: &sestypes.Destination{
			ToAddresses: []string{target},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(subject)},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(body)},
				},
			},
		},
	}

	if _, err := g.sesClient.SendEmail(ctx, input); err != nil {
		util.Error("Failed to send email", zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	util.Info("Verification email sent")
	return nil
}

// NoopGateway accepts every send without delivering anything. Used in
// development so codes can be read from the store directly.
type NoopGateway struct{}

func NewNoopGateway(logger *zap.Logger) *NoopGateway {
	util.Info("Noop delivery gateway initialized")
	return &NoopGateway{}
}

func (g *NoopGateway) Send(ctx context.Context, target, otpType, code string) error {
	util.Debug("Delivery skipped (noop gateway)",
		zap.String("otp_type", otpType))
	return nil
}
