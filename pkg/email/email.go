// Package email composes and delivers the contact form emails over SMTP.
package email

import (
	"errors"
	"strings"
	"time"
)

// Default transport settings.
const (
	DefaultPort              = 587
	DefaultConnectionTimeout = 10 * time.Second
	DefaultGreetingTimeout   = 5 * time.Second
	DefaultSocketTimeout     = 10 * time.Second

	DefaultFromName = "Ekuphumuleni"
)

// Transport error categories. Returned errors wrap one of these.
var (
	ErrConnect  = errors.New("smtp: connection failed")
	ErrGreeting = errors.New("smtp: greeting failed")
	ErrAuth     = errors.New("smtp: authentication failed")
	ErrSend     = errors.New("smtp: send failed")
)

// Message is a single outbound email.
type Message struct {
	FromName  string
	FromEmail string
	To        string
	ReplyTo   string
	Subject   string
	HTMLBody  string
	TextBody  string
}

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string
	Port     int
	Secure   bool // implicit TLS on connect (usually port 465); otherwise STARTTLS when offered
	Username string
	Password string

	FromName  string
	FromEmail string

	ConnectionTimeout time.Duration // dial + TLS handshake
	GreetingTimeout   time.Duration // wait for the 220 banner
	SocketTimeout     time.Duration // inactivity on an open connection
}

// IsConfigured checks that the connection parameters needed to relay mail are present.
func (c SMTPConfig) IsConfigured() bool {
	return c.Host != "" && c.Username != "" && c.Password != ""
}

func (c SMTPConfig) withDefaults() SMTPConfig {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = DefaultConnectionTimeout
	}
	if c.GreetingTimeout <= 0 {
		c.GreetingTimeout = DefaultGreetingTimeout
	}
	if c.SocketTimeout <= 0 {
		c.SocketTimeout = DefaultSocketTimeout
	}
	if c.FromName == "" {
		c.FromName = DefaultFromName
	}
	if c.FromEmail == "" {
		c.FromEmail = c.Username
	}
	return c
}

var htmlEscaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// EscapeHTML escapes user text for interpolation into an HTML body.
// Ampersands are replaced first so the entities produced afterwards are not escaped twice.
func EscapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	return htmlEscaper.Replace(s)
}

var lineBreaks = strings.NewReplacer("\r\n", "<br>", "\r", "<br>", "\n", "<br>")

// FormatMultiline escapes s and turns its line breaks into <br> markers.
func FormatMultiline(s string) string {
	return lineBreaks.Replace(EscapeHTML(s))
}

// sanitizeHeader drops CR and LF so user input cannot start a new header line.
func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}
