package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/example/parfum-commerce/internal/metrics"
)

const (
	TemplateOrderConfirmation = "order_confirmation"
	TemplateCartReminder      = "cart_reminder"
)

const defaultTimeout = 10 * time.Second

var ErrInvalidRecipient = errors.New("invalid recipient address")

type sendFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service handles email sending via SMTP
type Service struct {
	host     string
	port     string
	from     string
	auth     smtp.Auth
	timeout  time.Duration
	sendMail sendFunc
}

// NewService creates a new email service
func NewService(host, port, from string) *Service {
	s := &Service{
		host:    host,
		port:    port,
		from:    from,
		timeout: defaultTimeout,
	}
	s.sendMail = s.dialAndSend
	return s
}

// WithTimeout bounds one whole SMTP conversation, dial included
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// WithAuth enables PLAIN authentication against the relay
func (s *Service) WithAuth(username, password string) *Service {
	if username != "" {
		s.auth = smtp.PlainAuth("", username, password, s.host)
	}
	return s
}

// SendOrderConfirmation sends an order confirmation email
func (s *Service) SendOrderConfirmation(ctx context.Context, to string, o OrderSummary) error {
	subject := fmt.Sprintf("Your order %s is confirmed", o.Reference)
	return s.send(ctx, TemplateOrderConfirmation, to, subject, BuildOrderConfirmationBody(o))
}

// SendCartReminder sends one stage of the abandoned cart sequence
func (s *Service) SendCartReminder(ctx context.Context, to string, r CartReminder) error {
	return s.send(ctx, TemplateCartReminder, to, ReminderSubject(r.Stage), BuildCartReminderBody(r))
}

func (s *Service) send(ctx context.Context, template, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rcpt, err := parseRecipient(to)
	if err != nil {
		metrics.EmailsSentTotal.WithLabelValues(template, "failure").Inc()
		return fmt.Errorf("%s mail: %w", template, err)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, rcpt, subject, body)
	addr := net.JoinHostPort(s.host, s.port)
	err = s.sendMail(ctx, addr, s.auth, s.from, []string{rcpt}, []byte(msg))
	metrics.EmailsSentTotal.WithLabelValues(template, metrics.Result(err)).Inc()
	return err
}

// parseRecipient accepts one bare address. Line breaks would let the value
// add headers of its own.
func parseRecipient(to string) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidRecipient)
	}
	if strings.ContainsAny(to, "\r\n") {
		return "", fmt.Errorf("%w: contains a line break", ErrInvalidRecipient)
	}
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}
	return addr.Address, nil
}

// dialAndSend is smtp.SendMail with a deadline on the connection
func (s *Service) dialAndSend(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return err
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(a); err != nil {
				return err
			}
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
