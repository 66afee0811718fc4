// Package mail sends the pipeline's outbound email: the per-consent
// processing notification and the daily operator digest.
package mail

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// Mailer delivers one HTML email.
type Mailer interface {
	Send(ctx context.Context, from string, to []string, subject, htmlBody string) error
}

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailer sends through the Simple Email Service.
type SESMailer struct {
	client sesAPI
}

func NewSESMailer(ctx context.Context, region, accessKey, secretKey string) (*SESMailer, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
	if err != nil {
		return nil, fmt.Errorf("loading email config failed: %w", err)
	}
	return &SESMailer{client: sesv2.NewFromConfig(awsCfg)}, nil
}

func (m *SESMailer) Send(ctx context.Context, from string, to []string, subject, htmlBody string) error {
	_, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: to},
		ReplyToAddresses: []string{from},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sending email failed: %w", err)
	}
	return nil
}
