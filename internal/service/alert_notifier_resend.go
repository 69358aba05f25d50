package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"

	"fundadmin/internal/entity"
)

// ResendAlertNotifier emails security alerts to the operations inbox.
// Without credentials it delivers nowhere and reports no error, so
// deployments without an email provider stay quiet.
type ResendAlertNotifier struct {
	client *resend.Client
	from   string
	to     string
}

func NewResendAlertNotifier(apiKey string, from string, to string) *ResendAlertNotifier {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
		return &ResendAlertNotifier{}
	}
	return &ResendAlertNotifier{
		client: resend.NewClient(apiKey),
		from:   from,
		to:     to,
	}
}

func (n *ResendAlertNotifier) NotifyAlert(ctx context.Context, alert *entity.SecurityAlert) error {
	if n.client == nil {
		return nil
	}
	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(alert.Severity)), alert.Title)
	html := fmt.Sprintf(
		"<p><strong>%s</strong></p><p>%s</p><p>Alert type: %s<br>Alert id: %s</p>",
		alert.Title, alert.Description, alert.Type, alert.ID,
	)
	text := fmt.Sprintf("%s\n\n%s\n\nAlert type: %s\nAlert id: %s",
		alert.Title, alert.Description, alert.Type, alert.ID)

	_, err := n.client.Emails.Send(&resend.SendEmailRequest{
		From:    n.from,
		To:      []string{n.to},
		Subject: subject,
		Html:    html,
		Text:    text,
	})
	return err
}
