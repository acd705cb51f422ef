package email_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/creditkit/pkg/email"
)

func validMessage() email.Message {
	return email.Message{
		To:       "user@example.com",
		Subject:  "Subscription paused",
		HTMLBody: "<p>paused</p>",
		Tag:      "subscription-paused",
	}
}

func TestMessageValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*email.Message)
		errMsg string
	}{
		{name: "valid", mutate: func(*email.Message) {}},
		{name: "text body only", mutate: func(m *email.Message) { m.HTMLBody = ""; m.TextBody = "paused" }},
		{name: "empty recipient", mutate: func(m *email.Message) { m.To = "  " }, errMsg: "recipient is required"},
		{name: "bad recipient", mutate: func(m *email.Message) { m.To = "user@" }, errMsg: "valid email address"},
		{name: "empty subject", mutate: func(m *email.Message) { m.Subject = "" }, errMsg: "subject is required"},
		{name: "no body", mutate: func(m *email.Message) { m.HTMLBody = " " }, errMsg: "body is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			msg := validMessage()
			tt.mutate(&msg)
			err := msg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, email.ErrInvalidMessage)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewPostmarkSender(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		s, err := email.NewPostmarkSender(email.Config{
			PostmarkServerToken: "server",
			SenderEmail:         "billing@example.com",
			SupportEmail:        "support@example.com",
		})
		require.NoError(t, err)
		assert.NotNil(t, s)
	})

	t.Run("missing token", func(t *testing.T) {
		t.Parallel()
		_, err := email.NewPostmarkSender(email.Config{SenderEmail: "billing@example.com"})
		assert.ErrorIs(t, err, email.ErrInvalidConfig)
	})

	t.Run("bad sender", func(t *testing.T) {
		t.Parallel()
		_, err := email.NewPostmarkSender(email.Config{PostmarkServerToken: "x", SenderEmail: "nope"})
		assert.ErrorIs(t, err, email.ErrInvalidConfig)
	})
}

func TestNewPicksDevSender(t *testing.T) {
	t.Parallel()
	s, err := email.New(email.Config{DevDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &email.DevSender{}, s)
}

func TestDevSender(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "mail")
	s := email.NewDevSender(dir)

	require.NoError(t, s.Send(context.Background(), validMessage()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "subscription-paused")

	raw, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "user@example.com", got["to"])
	assert.Equal(t, "Subscription paused", got["subject"])

	err = s.Send(context.Background(), email.Message{})
	assert.ErrorIs(t, err, email.ErrInvalidMessage)
}
