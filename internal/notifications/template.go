package notifications

import (
	"fmt"
	"html/template"
	"strings"
	"time"
)

const dateFormat = "02/01/06"

// TemplateContext is the data available to notification subject and message
// templates.
type TemplateContext struct {
	SiteTitle  string
	Book       string
	Author     string
	Name       string
	Signature  string
	Due        string
	ReturnDate string
	LoanDate   string
	LateDays   int
}

// Render executes the notification's subject and message templates against
// the context. Newlines are stripped from the rendered subject to keep the
// header well formed.
func Render(n Notification, ctx TemplateContext) (subject, message string, err error) {
	subject, err = renderOne("subject", n.Subject, ctx)
	if err != nil {
		return "", "", fmt.Errorf("notifications: render subject: %w", err)
	}
	subject = strings.ReplaceAll(subject, "\n", " ")

	message, err = renderOne("message", n.Message, ctx)
	if err != nil {
		return "", "", fmt.Errorf("notifications: render message: %w", err)
	}
	return subject, message, nil
}

func renderOne(name, text string, ctx TemplateContext) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FormatDate renders a timestamp the way templates expect, or empty for nil.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateFormat)
}

// HTMLToText strips tags from a rendered message for the plain-text
// alternative part. Block-level closers become newlines.
func HTMLToText(html string) string {
	var b strings.Builder
	inTag := false
	var tag strings.Builder
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
			tag.Reset()
		case r == '>' && inTag:
			inTag = false
			name := strings.ToLower(tag.String())
			closing := strings.HasPrefix(name, "/")
			name = strings.TrimPrefix(name, "/")
			switch {
			case name == "br" || name == "br/":
				b.WriteByte('\n')
			case closing:
				switch name {
				case "p", "div", "li", "h1", "h2", "h3":
					b.WriteByte('\n')
				}
			}
		case inTag:
			tag.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
