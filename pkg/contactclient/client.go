// Package contactclient drives the contact form from Go: it holds the field
// values, validates them locally with the same rules as the server and submits
// them to the contact endpoint.
package contactclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"ekuphumuleni-api/pkg/validation"
)

type Status int

const (
	StatusIdle Status = iota
	StatusSubmitting
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSubmitting:
		return "submitting"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// User-facing messages for outcomes the server did not describe.
const (
	MsgSent            = "Thank you for your message! We'll get back to you soon."
	MsgCorrectErrors   = "Please correct the errors in the form"
	MsgTimeout         = "The request timed out. Please check your connection and try again."
	MsgConnectivity    = "Unable to reach the server. Please check your internet connection and try again."
	MsgUnexpectedError = "Something went wrong. Please try again later."
)

var (
	ErrSubmitInFlight = errors.New("contactclient: a submission is already in progress")
	ErrUnknownField   = errors.New("contactclient: unknown field")
)

const defaultTimeout = 30 * time.Second

// Form is the wire body of a submission.
type Form struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Outcome is the state after a Submit.
type Outcome struct {
	Status      Status
	Message     string
	FieldErrors validation.FieldErrors
}

type errorBody struct {
	Error            string            `json:"error"`
	ValidationErrors map[string]string `json:"validationErrors"`
}

type successBody struct {
	Message string `json:"message"`
}

type Option func(*Client)

// WithHTTPClient replaces the default client, e.g. to change its timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client is safe for concurrent use; at most one Submit runs at a time.
type Client struct {
	endpoint string
	http     *http.Client

	mu       sync.Mutex
	form     Form
	errs     validation.FieldErrors
	status   Status
	message  string
	inFlight bool
}

// New returns a client posting to endpoint, the full URL of POST /api/contact.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: defaultTimeout},
		errs:     validation.FieldErrors{},
		status:   StatusIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ValidateField checks one value against the shared rules without touching state.
func (c *Client) ValidateField(field, value string) string {
	return validation.ValidateField(field, value)
}

// SetField stores a value. Editing a field does not clear its error; Blur does.
func (c *Client) SetField(field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch field {
	case validation.FieldName:
		c.form.Name = value
	case validation.FieldEmail:
		c.form.Email = value
	case validation.FieldMessage:
		c.form.Message = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// Blur validates the current value of a field and records or clears its error.
func (c *Client) Blur(field string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := validation.ValidateField(field, c.valueOf(field))
	if msg == "" {
		delete(c.errs, field)
	} else {
		c.errs[field] = msg
	}
	return msg
}

func (c *Client) valueOf(field string) string {
	switch field {
	case validation.FieldName:
		return c.form.Name
	case validation.FieldEmail:
		return c.form.Email
	case validation.FieldMessage:
		return c.form.Message
	}
	return ""
}

func (c *Client) Form() Form {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form
}

func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Message is the top-level message of the last submission.
func (c *Client) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

// Errors returns a copy of the displayed field errors.
func (c *Client) Errors() validation.FieldErrors {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyErrors()
}

func (c *Client) copyErrors() validation.FieldErrors {
	out := make(validation.FieldErrors, len(c.errs))
	for k, v := range c.errs {
		out[k] = v
	}
	return out
}

// Submit validates the form and, when it is valid, posts it. A second Submit
// while one is running returns ErrSubmitInFlight and leaves state unchanged.
func (c *Client) Submit(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return Outcome{}, ErrSubmitInFlight
	}
	c.inFlight = true
	c.status = StatusSubmitting
	c.errs = validation.FieldErrors{}
	c.message = ""
	form := c.form
	c.mu.Unlock()

	if errs := validation.ValidateSubmission(form.Name, form.Email, form.Message); errs.HasErrors() {
		return c.finish(StatusError, MsgCorrectErrors, errs, false), nil
	}

	status, message, fields := c.post(ctx, form)
	return c.finish(status, message, fields, status == StatusSuccess), nil
}

func (c *Client) finish(status Status, message string, fields validation.FieldErrors, reset bool) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = status
	c.message = message
	for k, v := range fields {
		c.errs[k] = v
	}
	if reset {
		c.form = Form{}
	}
	c.inFlight = false

	return Outcome{Status: status, Message: message, FieldErrors: c.copyErrors()}
}

func (c *Client) post(ctx context.Context, form Form) (Status, string, validation.FieldErrors) {
	payload, err := json.Marshal(form)
	if err != nil {
		return StatusError, MsgUnexpectedError, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return StatusError, MsgUnexpectedError, nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return StatusError, MsgTimeout, nil
		}
		return StatusError, MsgConnectivity, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var ok successBody
		if json.Unmarshal(body, &ok) == nil && ok.Message != "" {
			return StatusSuccess, ok.Message, nil
		}
		return StatusSuccess, MsgSent, nil
	}

	var failed errorBody
	if err := json.Unmarshal(body, &failed); err != nil || failed.Error == "" {
		return StatusError, MsgUnexpectedError, validation.FieldErrors(failed.ValidationErrors)
	}
	return StatusError, failed.Error, validation.FieldErrors(failed.ValidationErrors)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
