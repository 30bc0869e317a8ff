package email

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// Submission is the already validated contact form input.
type Submission struct {
	Name    string
	Email   string
	Message string
}

// ComposerConfig configures who the contact emails come from and go to.
type ComposerConfig struct {
	SiteName        string
	FromName        string
	FromEmail       string
	OwnerEmail      string // receives the notification
	FallbackContact string // shown to the submitter for urgent matters
}

// Composer builds the owner notification and the submitter confirmation.
type Composer struct {
	config       ComposerConfig
	owner        *template.Template
	confirmation *template.Template
	now          func() time.Time
}

// NewComposer parses the email templates.
func NewComposer(cfg ComposerConfig) (*Composer, error) {
	if cfg.SiteName == "" {
		cfg.SiteName = DefaultFromName
	}
	if cfg.FromName == "" {
		cfg.FromName = cfg.SiteName
	}
	if cfg.FallbackContact == "" {
		cfg.FallbackContact = cfg.OwnerEmail
	}

	owner, err := template.New("owner").Parse(ownerNotificationTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse owner notification template: %w", err)
	}
	confirmation, err := template.New("confirmation").Parse(confirmationTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse confirmation template: %w", err)
	}

	return &Composer{
		config:       cfg,
		owner:        owner,
		confirmation: confirmation,
		now:          time.Now,
	}, nil
}

// templateData carries pre-escaped user values. html/template would escape plain
// strings a second time, so user text is passed as template.HTML after EscapeHTML.
type templateData struct {
	SiteName   string
	Name       template.HTML
	Email      template.HTML
	EmailAddr  string // raw, for href attributes where html/template applies URL escaping
	Message    template.HTML
	Fallback   string
	ReceivedAt string
	Year       int
}

func (c *Composer) data(s Submission) templateData {
	now := c.now()
	return templateData{
		SiteName:   c.config.SiteName,
		Name:       template.HTML(EscapeHTML(s.Name)),
		Email:      template.HTML(EscapeHTML(s.Email)),
		EmailAddr:  s.Email,
		Message:    template.HTML(FormatMultiline(s.Message)),
		Fallback:   c.config.FallbackContact,
		ReceivedAt: now.Format("2 January 2006, 15:04 MST"),
		Year:       now.Year(),
	}
}

// OwnerNotification builds the email sent to the site owner. Replies go to the submitter.
func (c *Composer) OwnerNotification(s Submission) (Message, error) {
	data := c.data(s)

	var body bytes.Buffer
	if err := c.owner.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("failed to execute owner notification template: %w", err)
	}

	text := fmt.Sprintf(`New contact form submission

Name: %s
Email: %s
Received: %s

Message:
%s

Reply to this email to respond to %s directly.
`, s.Name, s.Email, data.ReceivedAt, s.Message, s.Name)

	return Message{
		FromName:  c.config.FromName,
		FromEmail: c.config.FromEmail,
		To:        c.config.OwnerEmail,
		ReplyTo:   s.Email,
		Subject:   fmt.Sprintf("New contact form submission from %s", s.Name),
		HTMLBody:  body.String(),
		TextBody:  text,
	}, nil
}

// Confirmation builds the acknowledgement sent back to the submitter.
func (c *Composer) Confirmation(s Submission) (Message, error) {
	data := c.data(s)

	var body bytes.Buffer
	if err := c.confirmation.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("failed to execute confirmation template: %w", err)
	}

	text := fmt.Sprintf(`Dear %s,

Thank you for contacting %s. We have received your message and will reply to %s as soon as possible.

Your message:
%s

For urgent matters, please contact us directly at %s.

Kind regards,
The %s Team
`, s.Name, c.config.SiteName, s.Email, s.Message, c.config.FallbackContact, c.config.SiteName)

	return Message{
		FromName:  c.config.FromName,
		FromEmail: c.config.FromEmail,
		To:        s.Email,
		Subject:   fmt.Sprintf("Thank you for contacting %s", c.config.SiteName),
		HTMLBody:  body.String(),
		TextBody:  text,
	}, nil
}

const ownerNotificationTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>New Contact Form Submission</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #2f6b4f; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background: #f9f9f9; }
        .field { margin-bottom: 15px; }
        .label { font-weight: bold; color: #555; }
        .value { margin-top: 5px; }
        .message-box { background: white; padding: 15px; border-left: 4px solid #2f6b4f; margin-top: 10px; }
        .footer { text-align: center; padding: 20px; color: #888; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>New Contact Form Submission</h1>
        </div>
        <div class="content">
            <div class="field">
                <div class="label">Name:</div>
                <div class="value">{{.Name}}</div>
            </div>
            <div class="field">
                <div class="label">Email:</div>
                <div class="value"><a href="mailto:{{.EmailAddr}}">{{.Email}}</a></div>
            </div>
            <div class="field">
                <div class="label">Received:</div>
                <div class="value">{{.ReceivedAt}}</div>
            </div>
            <div class="field">
                <div class="label">Message:</div>
                <div class="message-box">{{.Message}}</div>
            </div>
        </div>
        <div class="footer">
            <p>This email was sent from the {{.SiteName}} website contact form.</p>
            <p>Reply to this email to respond to the sender directly.</p>
        </div>
    </div>
</body>
</html>`

const confirmationTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Thank you for contacting {{.SiteName}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #2f6b4f; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background: #f9f9f9; }
        .message-box { background: white; padding: 15px; border-left: 4px solid #2f6b4f; margin: 10px 0 20px; }
        .footer { text-align: center; padding: 20px; color: #888; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Thank you for reaching out</h1>
        </div>
        <div class="content">
            <p>Dear {{.Name}},</p>
            <p>Thank you for contacting {{.SiteName}}. We have received your message and will reply to {{.Email}} as soon as possible.</p>
            <p>For your records, this is the message you sent:</p>
            <div class="message-box">{{.Message}}</div>
            <p>For urgent matters, please contact us directly at <a href="mailto:{{.Fallback}}">{{.Fallback}}</a>.</p>
            <p>Kind regards,<br>The {{.SiteName}} Team</p>
        </div>
        <div class="footer">
            <p>&copy; {{.Year}} {{.SiteName}}. You received this email because you submitted our contact form.</p>
        </div>
    </div>
</body>
</html>`
