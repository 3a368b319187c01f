package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Sendgrid delivers mail through the SendGrid v3 API.
type Sendgrid struct {
	client *sendgrid.Client
	from   *sgmail.Email
}

// NewSendgrid creates the SendGrid backend.
func NewSendgrid(apiKey, fromAddr, fromName string) *Sendgrid {
	return &Sendgrid{
		client: sendgrid.NewSendClient(apiKey),
		from:   sgmail.NewEmail(fromName, fromAddr),
	}
}

// Send delivers one plain-text email.
func (s *Sendgrid) Send(ctx context.Context, to, subject, body string) error {
	msg := sgmail.NewSingleEmail(s.from, subject, sgmail.NewEmail("", to), body, "")
	res, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return err
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
