// Package notify sends the subscription confirmation e-mails: subscribed,
// plan changed, paused, resumed, cancelled, reactivated and discount applied.
//
// Mailer renders an HTML and a plain text body from templ components
// and hands the message to a pkg/email Sender. Events without a template are
// ignored. Callers treat delivery as best effort.
package notify
