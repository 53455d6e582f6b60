package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/homewatch/homewatch/internal/store"
)

// EmailSender delivers events over SMTP.
//
// Config keys: smtp_server, smtp_port, use_tls (STARTTLS, default true),
// use_ssl (implicit TLS, default false), username, password, from_email
// (defaults to username), to_email (required).
type EmailSender struct {
	// Timeout bounds the dial; the connection deadline covers the rest of
	// the exchange.
	Timeout time.Duration
}

// Send composes and submits the message. All SMTP failures are returned as
// Result errors, never raised.
func (s *EmailSender) Send(_ context.Context, cfg map[string]any, ev *store.Event) Result {
	server := cfgString(cfg, "smtp_server", "smtp.gmail.com")
	port := cfgInt(cfg, "smtp_port", 587)
	useTLS := cfgBool(cfg, "use_tls", true)
	useSSL := cfgBool(cfg, "use_ssl", false)
	username := cfgString(cfg, "username", "")
	password := cfgString(cfg, "password", "")
	from := cfgString(cfg, "from_email", username)
	to := cfgString(cfg, "to_email", "")

	if to == "" {
		return failure("no recipient email configured")
	}
	if from == "" {
		return failure("no sender email configured")
	}

	msg := buildEmailBody(from, to, ev)
	addr := fmt.Sprintf("%s:%d", server, port)

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	var (
		conn net.Conn
		err  error
	)
	if useSSL {
		// Implicit TLS from the first byte (typically port 465).
		conn, err = tls.DialWithDialer(&net.Dialer{Timeout: timeout}, "tcp", addr,
			&tls.Config{ServerName: server})
	} else {
		conn, err = net.DialTimeout("tcp", addr, timeout)
	}
	if err != nil {
		return failure("smtp dial %s: %s", addr, err)
	}
	_ = conn.SetDeadline(time.Now().Add(timeout))

	client, err := smtp.NewClient(conn, server)
	if err != nil {
		conn.Close()
		return failure("smtp handshake: %s", err)
	}
	defer client.Close()

	if !useSSL && useTLS {
		if err := client.StartTLS(&tls.Config{ServerName: server}); err != nil {
			return failure("smtp starttls: %s", err)
		}
	}

	if username != "" && password != "" {
		auth := smtp.PlainAuth("", username, password, server)
		if err := client.Auth(auth); err != nil {
			return failure("smtp authentication failed: %s", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return failure("smtp mail from: %s", err)
	}
	if err := client.Rcpt(to); err != nil {
		return failure("smtp rcpt to: %s", err)
	}

	w, err := client.Data()
	if err != nil {
		return failure("smtp data: %s", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return failure("smtp write: %s", err)
	}
	if err := w.Close(); err != nil {
		return failure("smtp close: %s", err)
	}
	_ = client.Quit()

	return success()
}

// buildEmailBody renders the full RFC 5322 message: headers plus a
// multipart/alternative body with plain-text and HTML parts.
func buildEmailBody(from, to string, ev *store.Event) string {
	label := severityLabel(ev.Severity)
	when := "unknown"
	if !ev.Timestamp.IsZero() {
		when = ev.Timestamp.UTC().Format("2006-01-02 15:04:05")
	}
	color := fmt.Sprintf("#%06X", severityColor(ev.Severity))

	text := fmt.Sprintf(`homewatch notification
======================

Severity: %s (Level %d)
Source: %s
Time: %s

Title: %s

Message:
%s
`, label, ev.Severity, ev.Source, when, ev.Title, ev.Message)

	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, sans-serif;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <div style="background: %s; color: white; padding: 15px 20px; border-radius: 8px 8px 0 0;">
      <h2 style="margin: 0;">%s</h2>
      <p style="margin: 5px 0 0 0; opacity: 0.9;">%s &bull; %s</p>
    </div>
    <div style="background: #f9fafb; padding: 20px; border: 1px solid #e5e7eb; border-top: none; border-radius: 0 0 8px 8px;">
      <div style="color: #6b7280; font-size: 14px; margin-bottom: 15px;"><strong>Time:</strong> %s</div>
      <div style="background: white; padding: 15px; border-radius: 6px; border: 1px solid #e5e7eb;">%s</div>
    </div>
  </div>
</body>
</html>
`, color, ev.Title, label, ev.Source, when, ev.Message)

	boundary := "homewatch-boundary-000"
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: [%s] %s\r\n", label, ev.Title)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(text, "\n", "\r\n"))
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(html, "\n", "\r\n"))
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.String()
}
