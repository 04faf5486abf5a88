// Package notify abstracts outbound email. The application only needs two
// messages (verification codes and contact-form relays), so the interface
// stays small; production wires an SMTP implementation, development and
// tests use the log sender.
package notify

import (
	"context"
	"log"
)

// Sender delivers a plain-text message to a recipient address.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender writes messages to the process log instead of delivering them.
type LogSender struct{}

func (LogSender) Send(_ context.Context, to, subject, body string) error {
	log.Printf("mail to=%s subject=%q body=%q", to, subject, body)
	return nil
}

// CaptureSender records messages in memory for assertions.
type CaptureSender struct {
	Messages []CapturedMessage
}

type CapturedMessage struct {
	To, Subject, Body string
}

func (c *CaptureSender) Send(_ context.Context, to, subject, body string) error {
	c.Messages = append(c.Messages, CapturedMessage{To: to, Subject: subject, Body: body})
	return nil
}
