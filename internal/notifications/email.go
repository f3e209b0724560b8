package notifications

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// EmailSettings holds the SMTP configuration for alert emails.
type EmailSettings struct {
	Recipients  []string
	FromAddress string
	ReplyTo     string
	Host        string
	Port        int
	TLS         bool
	Username    string
	Password    string
}

// Validate reports the first missing setting wrapped in ErrConfigurationMissing.
func (s EmailSettings) Validate() error {
	missing := ""
	switch {
	case len(s.Recipients) == 0:
		missing = "recipients"
	case s.FromAddress == "":
		missing = "from_address"
	case s.Host == "":
		missing = "host"
	case s.Port == 0:
		missing = "port"
	case s.TLS && s.Username == "":
		missing = "username"
	case s.TLS && s.Password == "":
		missing = "password"
	}
	if missing != "" {
		return fmt.Errorf("%w: no %s defined", ErrConfigurationMissing, missing)
	}
	return nil
}

// SendMailFunc matches smtp.SendMail.
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

const smtpDialTimeout = 30 * time.Second

// EmailNotifier sends alerts through an SMTP relay.
type EmailNotifier struct {
	settings    EmailSettings
	sendMail    SendMailFunc // Used when TLS is off, always without auth
	sendMailTLS SendMailFunc // Used when TLS is on, requires STARTTLS
	now         func() time.Time
}

// NewEmailNotifier creates an EmailNotifier. The settings are validated on
// every send so a fixed configuration takes effect without a restart of
// the alert loop.
func NewEmailNotifier(settings EmailSettings) *EmailNotifier {
	if settings.ReplyTo == "" {
		settings.ReplyTo = settings.FromAddress
	}
	return &EmailNotifier{
		settings:    settings,
		sendMail:    smtp.SendMail,
		sendMailTLS: SendMailStartTLS,
		now:         time.Now,
	}
}

// WithSendMail replaces the plain SMTP transport.
func (e *EmailNotifier) WithSendMail(fn SendMailFunc) *EmailNotifier {
	e.sendMail = fn
	return e
}

// WithSendMailTLS replaces the STARTTLS transport.
func (e *EmailNotifier) WithSendMailTLS(fn SendMailFunc) *EmailNotifier {
	e.sendMailTLS = fn
	return e
}

func (e *EmailNotifier) Name() string { return "email" }

// Notify sends msg to all recipients. net/smtp cannot be cancelled, so ctx
// is only checked before dialing.
func (e *EmailNotifier) Notify(ctx context.Context, msg Message) error {
	if err := e.settings.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	send, auth := e.sendMail, smtp.Auth(nil)
	if e.settings.TLS {
		send = e.sendMailTLS
		auth = smtp.PlainAuth("", e.settings.Username, e.settings.Password, e.settings.Host)
	}

	addr := net.JoinHostPort(e.settings.Host, strconv.Itoa(e.settings.Port))
	if err := send(addr, auth, e.settings.FromAddress, e.settings.Recipients, e.compose(msg)); err != nil {
		return fmt.Errorf("failed to send email via %s: %w", addr, err)
	}
	return nil
}

func (e *EmailNotifier) compose(msg Message) []byte {
	var buf bytes.Buffer
	header := func(key, value string) {
		buf.WriteString(key + ": " + value + "\r\n")
	}
	header("From", e.settings.FromAddress)
	header("To", strings.Join(e.settings.Recipients, ", "))
	header("Reply-To", e.settings.ReplyTo)
	header("Subject", msg.Subject)
	header("Date", e.now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=UTF-8")
	buf.WriteString("\r\n")
	buf.WriteString(msg.Body)
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// SendMailStartTLS behaves like smtp.SendMail but fails unless the server
// offers STARTTLS, so credentials never travel in clear text.
func SendMailStartTLS(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}

	conn, err := net.DialTimeout("tcp", addr, smtpDialTimeout)
	if err != nil {
		return err
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); !ok {
		return errors.New("smtp server does not support STARTTLS")
	}
	if err := c.StartTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}
	if a != nil {
		if err := c.Auth(a); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
