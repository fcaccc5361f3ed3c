// Package notifier broadcasts pipeline and discovery failures to the active
// email recipients over SMTP. Sending is never on the critical path; every
// failure is logged and swallowed by the caller.
package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/jonesrussell/newsagent/internal/logger"
)

// RecipientSource supplies the active recipient emails at send time.
type RecipientSource interface {
	ActiveEmails(ctx context.Context) ([]string, error)
}

// Alert describes one failed job.
type Alert struct {
	JobID        string
	SourceURL    string
	ErrorMessage string
	Traceback    string
	OccurredAt   time.Time
}

// Notifier sends failure alerts.
type Notifier interface {
	NotifyFailure(ctx context.Context, alert Alert) error
}

// SMTPNotifier is the production Notifier.
type SMTPNotifier struct {
	host       string
	port       int
	email      string
	password   string
	recipients RecipientSource
	log        logger.Logger
}

// NewSMTPNotifier builds an SMTPNotifier.
func NewSMTPNotifier(host string, port int, email, password string, recipients RecipientSource, log logger.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		host:       host,
		port:       port,
		email:      email,
		password:   password,
		recipients: recipients,
		log:        log,
	}
}

// NotifyFailure implements Notifier. The recipient list is fetched fresh so
// admin changes take effect without a restart.
func (n *SMTPNotifier) NotifyFailure(ctx context.Context, alert Alert) error {
	if n.host == "" {
		n.log.Debug("Failure notification skipped, SMTP not configured")
		return nil
	}

	emails, err := n.recipients.ActiveEmails(ctx)
	if err != nil {
		return fmt.Errorf("load recipients: %w", err)
	}
	if len(emails) == 0 {
		n.log.Debug("Failure notification skipped, no active recipients")
		return nil
	}

	msg := n.compose(alert, emails)
	if err := n.send(emails, msg); err != nil {
		return fmt.Errorf("send failure alert: %w", err)
	}

	n.log.Info("Failure alert sent",
		logger.String("job_id", alert.JobID),
		logger.Int("recipients", len(emails)))
	return nil
}

func (n *SMTPNotifier) compose(alert Alert, to []string) []byte {
	occurred := alert.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.email)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: [NewsAgent] Job %s failed\r\n", alert.JobID)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")

	b.WriteString("<html><body>")
	b.WriteString("<h2>NewsAgent job failure</h2><table>")
	fmt.Fprintf(&b, "<tr><td>Job</td><td>%s</td></tr>", html.EscapeString(alert.JobID))
	fmt.Fprintf(&b, "<tr><td>Source URL</td><td>%s</td></tr>", html.EscapeString(alert.SourceURL))
	fmt.Fprintf(&b, "<tr><td>Error</td><td>%s</td></tr>", html.EscapeString(alert.ErrorMessage))
	fmt.Fprintf(&b, "<tr><td>Time</td><td>%s</td></tr>", occurred.Format(time.RFC3339))
	b.WriteString("</table>")
	if alert.Traceback != "" {
		fmt.Fprintf(&b, "<pre>%s</pre>", html.EscapeString(alert.Traceback))
	}
	b.WriteString("</body></html>")
	return []byte(b.String())
}

// send dials, upgrades with STARTTLS, authenticates, and submits the message.
func (n *SMTPNotifier) send(to []string, msg []byte) error {
	addr := net.JoinHostPort(n.host, fmt.Sprint(n.port))
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("dial smtp %s: %w", addr, err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: n.host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if n.password != "" {
		auth := smtp.PlainAuth("", n.email, n.password, n.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(n.email); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp finish: %w", err)
	}
	return client.Quit()
}

// NopNotifier discards alerts. Used when SMTP is not configured and in tests.
type NopNotifier struct{}

// NotifyFailure implements Notifier.
func (NopNotifier) NotifyFailure(context.Context, Alert) error { return nil }
