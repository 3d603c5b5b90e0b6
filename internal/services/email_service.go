package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailService defines the interface for sending verification emails.
// Dispatch is fire-and-forget from the account service's perspective.
type EmailService interface {
	SendVerificationEmail(ctx context.Context, email, token string) error
}

// SESEmailService sends emails using AWS SES
type SESEmailService struct {
	client      *ses.Client
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

func NewSESEmailService(region, fromAddress, baseURL string, logger *slog.Logger) (*SESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESEmailService{
		client:      ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}, nil
}

// SendVerificationEmail sends the account verification link.
func (s *SESEmailService) SendVerificationEmail(ctx context.Context, email, token string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", s.baseURL, token)

	htmlBody := fmt.Sprintf(`<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Verify your email address</h2>
  <p>Thanks for creating an account. Click the link below to verify your email address:</p>
  <p><a href="%s">Verify email address</a></p>
  <p>Or copy and paste this link into your browser:<br><code>%s</code></p>
  <p>If you didn't sign up, you can ignore this email.</p>
</body>
</html>`, link, link)

	textBody := fmt.Sprintf(`Verify your email address

Thanks for creating an account. Open the link below to verify your email address:

%s

If you didn't sign up, you can ignore this email.
`, link)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Verify your email address"),
			},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody)},
				Text: &types.Content{Data: aws.String(textBody)},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send verification email via SES", slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("verification email sent", slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}
