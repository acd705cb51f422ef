package notify

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

const (
	headerStyle = "background-color: #366494; padding: 30px; text-align: center;"
	textStyle   = "color: #666; line-height: 1.6; margin-bottom: 20px;"
	buttonStyle = "display: inline-block; background-color: #E88B4B; color: #ffffff; padding: 15px 30px; text-decoration: none; border-radius: 5px; font-weight: bold;"
)

// subscriptionHTML is the HTML confirmation body. Every value is escaped.
func subscriptionHTML(v view) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		esc := templ.EscapeString[string]
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8">`)
		b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1.0">`)
		fmt.Fprintf(&b, `<title>%s</title></head>`, esc(v.Title))
		b.WriteString(`<body style="margin: 0; padding: 0; font-family: Arial, sans-serif; background-color: #f5f5f5;">`)
		b.WriteString(`<div style="max-width: 600px; margin: 0 auto; background-color: #ffffff;">`)
		fmt.Fprintf(&b, `<div style="%s"><h1 style="color: #ffffff; margin: 0;">%s!</h1></div>`, headerStyle, esc(v.Title))
		b.WriteString(`<div style="padding: 40px 30px;"><h2 style="color: #333; margin-bottom: 20px;">Hi there!</h2>`)
		fmt.Fprintf(&b, `<p style="%s">Your <strong>%s</strong> subscription has been %s.</p>`,
			textStyle, esc(v.PlanName), esc(v.Action))
		for _, l := range v.Lines {
			fmt.Fprintf(&b, `<p style="%s">%s: <strong>%s</strong></p>`, textStyle, esc(l.Label), esc(l.Value))
		}
		fmt.Fprintf(&b, `<div style="text-align: center; margin: 30px 0;"><a href="%s" style="%s">Manage Subscription</a></div></div>`,
			esc(string(templ.URL(v.ManageURL))), buttonStyle)
		fmt.Fprintf(&b, `<div style="background-color: #f5f5f5; padding: 20px; text-align: center;"><p style="color: #999; font-size: 14px; margin: 0;">&copy; %d %s. All rights reserved.</p></div>`,
			v.Year, esc(v.ProductName))
		b.WriteString(`</div></body></html>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// subscriptionText is the plain text body.
func subscriptionText(v view) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, "%s!\n\nHi there!\n\nYour %s subscription has been %s.\n", v.Title, v.PlanName, v.Action)
		for _, l := range v.Lines {
			fmt.Fprintf(&b, "\n%s: %s", l.Label, l.Value)
		}
		fmt.Fprintf(&b, "\n\nManage your subscription: %s\n\n(c) %d %s. All rights reserved.\n", v.ManageURL, v.Year, v.ProductName)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
