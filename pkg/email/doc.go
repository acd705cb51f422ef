// Package email sends transactional mail through Postmark
// (github.com/mrz1836/postmark) or, in development, writes messages to disk.
//
//	sender, err := email.New(cfg)
//	err = sender.Send(ctx, email.Message{
//		To:       "user@example.com",
//		Subject:  "Your subscription is paused",
//		HTMLBody: body,
//		Tag:      "subscription-paused",
//	})
//
// Delivery failures are joined with ErrFailedToSendEmail.
package email
