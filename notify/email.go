package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailConfig holds SES settings.
type EmailConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Sender          string
}

// sesAPI is the subset of *ses.Client used here.
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailTransport delivers messages through AWS SES.
type EmailTransport struct {
	client sesAPI
	sender string
}

// NewEmailTransport builds an SES client. Static credentials are used when
// set, otherwise the default AWS credential chain.
func NewEmailTransport(ctx context.Context, cfg EmailConfig) (*EmailTransport, error) {
	if cfg.Sender == "" {
		return nil, errors.New("sender email address is not configured")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &EmailTransport{client: ses.NewFromConfig(awsCfg), sender: cfg.Sender}, nil
}

func (*EmailTransport) Name() string { return "email" }

func (t *EmailTransport) Send(ctx context.Context, msg Message) error {
	if msg.To.Email == "" {
		return ErrNoAddress
	}
	input := &ses.SendEmailInput{
		Source: aws.String(t.sender),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Charset: aws.String("UTF-8"),
				Data:    aws.String(msg.Subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Charset: aws.String("UTF-8"),
					Data:    aws.String(msg.Body),
				},
			},
		},
	}
	if _, err := t.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
