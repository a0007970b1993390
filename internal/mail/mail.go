// Package mail delivers rendered digests over SMTP.
package mail

import (
	"bytes"
	"fmt"
	"log"
	"os"

	"github.com/yuin/goldmark"
	"gopkg.in/gomail.v2"
)

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: -apple-system, Segoe UI, Helvetica, Arial, sans-serif; line-height: 1.6; color: #222; max-width: 760px; margin: 0 auto; padding: 16px; }
h1 { border-bottom: 2px solid #2c5f8a; padding-bottom: 8px; }
h2 { color: #2c5f8a; margin-top: 28px; }
h3 { margin-bottom: 4px; }
a { color: #2c5f8a; }
hr { border: none; border-top: 1px solid #ddd; margin: 20px 0; }
em { color: #666; }
</style>
</head>
<body>
%s
</body>
</html>`

// Options configure the SMTP mailer.
type Options struct {
	Host        string
	Port        int
	From        string
	Recipients  []string
	UsernameEnv string
	PasswordEnv string
}

// Mailer sends digest emails via SMTP.
type Mailer struct {
	opts Options
	md   goldmark.Markdown

	// send is swapped in tests.
	send func(m *gomail.Message) error
}

// New creates a mailer. Credentials are read from the configured
// environment variables at send time.
func New(opts Options) *Mailer {
	m := &Mailer{
		opts: opts,
		md:   goldmark.New(),
	}
	m.send = m.dialAndSend
	return m
}

func (m *Mailer) dialAndSend(msg *gomail.Message) error {
	username := os.Getenv(m.opts.UsernameEnv)
	password := os.Getenv(m.opts.PasswordEnv)
	d := gomail.NewDialer(m.opts.Host, m.opts.Port, username, password)
	return d.DialAndSend(msg)
}

// RenderHTML converts a markdown digest body into the styled HTML
// email body.
func (m *Mailer) RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return fmt.Sprintf(htmlTemplate, buf.String()), nil
}

// SendDigest renders and delivers one digest to all recipients.
func (m *Mailer) SendDigest(subject, bodyMarkdown string) error {
	html, err := m.RenderHTML(bodyMarkdown)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.opts.From)
	msg.SetHeader("To", m.opts.Recipients...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", bodyMarkdown)
	msg.AddAlternative("text/html", html)

	if err := m.send(msg); err != nil {
		return fmt.Errorf("sending digest: %w", err)
	}
	log.Printf("Digest sent to %d recipient(s)", len(m.opts.Recipients))
	return nil
}

// SendErrorNotification tells recipients that a run failed.
func (m *Mailer) SendErrorNotification(periodLabel string, runErr error) error {
	body := fmt.Sprintf("The digest run for %s failed:\n\n%v\n", periodLabel, runErr)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.opts.From)
	msg.SetHeader("To", m.opts.Recipients...)
	msg.SetHeader("Subject", "Oncology Research Digest — run failed ("+periodLabel+")")
	msg.SetBody("text/plain", body)

	if err := m.send(msg); err != nil {
		return fmt.Errorf("sending error notification: %w", err)
	}
	return nil
}
