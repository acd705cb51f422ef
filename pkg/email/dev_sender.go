package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DevSender writes each message as a JSON file into a directory instead of
// delivering it.
type DevSender struct {
	dir string
	now func() time.Time
}

func NewDevSender(dir string) *DevSender {
	return &DevSender{dir: dir, now: time.Now}
}

type devRecord struct {
	SentAt time.Time `json:"sent_at"`
	Message
}

func (d *DevSender) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create directory: %v", ErrFailedToSendEmail, err)
	}

	now := d.now()
	name := msg.Tag
	if name == "" {
		name = msg.Subject
	}
	path := filepath.Join(d.dir, fmt.Sprintf("%s_%s.json", now.Format("2006_01_02_150405.000000"), sanitizeFilename(name)))

	data, err := json.MarshalIndent(devRecord{SentAt: now, Message: msg}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode message: %v", ErrFailedToSendEmail, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write file: %v", ErrFailedToSendEmail, err)
	}
	return nil
}

var sanitizeRegex = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

func sanitizeFilename(s string) string {
	s = sanitizeRegex.ReplaceAllString(strings.ReplaceAll(s, " ", "_"), "")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "email"
	}
	return strings.ToLower(s)
}
