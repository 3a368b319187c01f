package mailer

import (
	"context"
	"log"
)

// Console logs emails instead of sending them; the dev default.
type Console struct{}

// NewConsole creates the console backend.
func NewConsole() *Console {
	return &Console{}
}

// Send writes the email to the process log.
func (c *Console) Send(_ context.Context, to, subject, body string) error {
	log.Printf("mail to=%s subject=%q\n%s", to, subject, body)
	return nil
}
