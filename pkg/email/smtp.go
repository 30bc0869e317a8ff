package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SMTPTransport relays messages through an SMTP server. Every call opens its own
// connection, so Verify and concurrent Sends do not share state.
type SMTPTransport struct {
	config    SMTPConfig
	tlsConfig *tls.Config
	logger    *slog.Logger
	// dial overrides the TCP dialer in tests
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewSMTPTransport creates a transport, filling unset ports and timeouts with defaults.
func NewSMTPTransport(config SMTPConfig, logger *slog.Logger) *SMTPTransport {
	config = config.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	return &SMTPTransport{
		config: config,
		tlsConfig: &tls.Config{
			ServerName: config.Host,
			MinVersion: tls.VersionTLS12,
		},
		logger: logger,
	}
}

// Config returns the effective transport configuration.
func (t *SMTPTransport) Config() SMTPConfig {
	return t.config
}

// Verify connects, authenticates and disconnects without sending anything.
func (t *SMTPTransport) Verify(ctx context.Context) error {
	client, err := t.open(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Noop(); err != nil {
		return fmt.Errorf("%w: %v", ErrGreeting, err)
	}
	if err := client.Quit(); err != nil {
		return fmt.Errorf("%w: quit: %v", ErrGreeting, err)
	}
	return nil
}

// Send delivers one message.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if msg.FromEmail == "" {
		msg.FromEmail = t.config.FromEmail
	}
	if msg.FromName == "" {
		msg.FromName = t.config.FromName
	}

	raw, err := buildMessage(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}

	client, err := t.open(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(msg.FromEmail); err != nil {
		return fmt.Errorf("%w: MAIL FROM: %v", ErrSend, err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("%w: RCPT TO: %v", ErrSend, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("%w: DATA: %v", ErrSend, err)
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return fmt.Errorf("%w: write body: %v", ErrSend, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: end of data: %v", ErrSend, err)
	}

	if err := client.Quit(); err != nil {
		// The message was accepted at end of DATA; a failed QUIT does not undo delivery.
		t.logger.Warn("smtp quit failed after delivery", "error", err)
	}

	t.logger.Info("email sent", "subject", msg.Subject)
	return nil
}

// open dials the server and returns a client that has completed the greeting,
// TLS negotiation and authentication.
func (t *SMTPTransport) open(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(t.config.Host, strconv.Itoa(t.config.Port))

	dial := t.dial
	if dial == nil {
		dial = (&net.Dialer{Timeout: t.config.ConnectionTimeout}).DialContext
	}
	raw, err := dial(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnect, addr, err)
	}

	deadline, _ := ctx.Deadline()
	conn := &idleConn{Conn: raw, timeout: t.config.ConnectionTimeout, ctxDeadline: deadline}

	var netConn net.Conn = conn
	if t.config.Secure {
		tlsConn := tls.Client(conn, t.tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			raw.Close()
			return nil, fmt.Errorf("%w: tls handshake: %v", ErrConnect, err)
		}
		netConn = tlsConn
	}

	// smtp.NewClient blocks on the 220 banner.
	conn.timeout = t.config.GreetingTimeout
	client, err := smtp.NewClient(netConn, t.config.Host)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("%w: %v", ErrGreeting, err)
	}
	conn.timeout = t.config.SocketTimeout

	if !t.config.Secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(t.tlsConfig); err != nil {
				client.Close()
				return nil, fmt.Errorf("%w: starttls: %v", ErrConnect, err)
			}
		}
	}

	if t.config.Username != "" {
		if ok, _ := client.Extension("AUTH"); !ok {
			client.Close()
			return nil, fmt.Errorf("%w: server does not support AUTH", ErrAuth)
		}
		auth := smtp.PlainAuth("", t.config.Username, t.config.Password, t.config.Host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, fmt.Errorf("%w: %v", ErrAuth, err)
		}
	}

	return client, nil
}

// idleConn refreshes the connection deadline on every read and write so that
// timeout bounds inactivity rather than the whole session. A context deadline,
// when set, is never extended.
type idleConn struct {
	net.Conn
	timeout     time.Duration
	ctxDeadline time.Time
}

func (c *idleConn) deadline() time.Time {
	d := time.Now().Add(c.timeout)
	if !c.ctxDeadline.IsZero() && c.ctxDeadline.Before(d) {
		return c.ctxDeadline
	}
	return d
}

func (c *idleConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(c.deadline()); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}

func (c *idleConn) Write(b []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(c.deadline()); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}

// buildMessage renders msg as a multipart/alternative RFC 5322 message.
func buildMessage(msg Message) ([]byte, error) {
	var buf bytes.Buffer

	boundary := "ekuphumuleni-" + uuid.NewString()

	fromHeader := (&mailbox{name: msg.FromName, address: msg.FromEmail}).String()

	buf.WriteString(fmt.Sprintf("From: %s\r\n", fromHeader))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", sanitizeHeader(msg.To)))
	if msg.ReplyTo != "" {
		buf.WriteString(fmt.Sprintf("Reply-To: %s\r\n", sanitizeHeader(msg.ReplyTo)))
	}
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", sanitizeHeader(msg.Subject))))
	buf.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	buf.WriteString(fmt.Sprintf("Message-ID: <%s@%s>\r\n", uuid.NewString(), domainOf(msg.FromEmail)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary))
	buf.WriteString("\r\n")

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=utf-8", msg.TextBody},
		{"text/html; charset=utf-8", msg.HTMLBody},
	}

	for _, part := range parts {
		buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		buf.WriteString(fmt.Sprintf("Content-Type: %s\r\n", part.contentType))
		buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
		buf.WriteString("\r\n")

		qp := quotedprintable.NewWriter(&buf)
		if _, err := qp.Write([]byte(part.body)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
		buf.WriteString("\r\n")
	}

	buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return buf.Bytes(), nil
}

type mailbox struct {
	name    string
	address string
}

func (m *mailbox) String() string {
	address := sanitizeHeader(m.address)
	if m.name == "" {
		return address
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", sanitizeHeader(m.name)), address)
}

func domainOf(address string) string {
	if i := strings.LastIndexByte(address, '@'); i >= 0 && i < len(address)-1 {
		return address[i+1:]
	}
	return "localhost"
}
