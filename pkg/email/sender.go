package email

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Sender delivers a single transactional message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Message struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	HTMLBody string            `json:"html_body"`
	TextBody string            `json:"text_body,omitempty"`
	Tag      string            `json:"tag,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+(\.[a-zA-Z]{2,})?$`)

// Validate checks the recipient, subject and that at least one body is set.
func (m Message) Validate() error {
	to := strings.TrimSpace(m.To)
	switch {
	case to == "":
		return fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	case !emailRegex.MatchString(to):
		return fmt.Errorf("%w: recipient must be a valid email address", ErrInvalidMessage)
	case strings.TrimSpace(m.Subject) == "":
		return fmt.Errorf("%w: subject is required", ErrInvalidMessage)
	case strings.TrimSpace(m.HTMLBody) == "" && strings.TrimSpace(m.TextBody) == "":
		return fmt.Errorf("%w: body is required", ErrInvalidMessage)
	}
	return nil
}

// New returns a Postmark sender when a server token is configured and a
// file-writing DevSender otherwise.
func New(cfg Config) (Sender, error) {
	if cfg.PostmarkServerToken != "" {
		return NewPostmarkSender(cfg)
	}
	return NewDevSender(cfg.DevDir), nil
}
