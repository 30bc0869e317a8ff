package domain

import (
	"context"
	"errors"

	"ekuphumuleni-api/pkg/email"
	"ekuphumuleni-api/pkg/validation"
)

// ContactRequest represents a contact form submission
type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// ContactResponse is returned when both emails were sent
type ContactResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// Contact pipeline failures. Handlers map these to HTTP statuses.
var (
	ErrNotConfigured        = errors.New("email service is not configured")
	ErrTransportUnavailable = errors.New("email service is temporarily unavailable")
	ErrDeliveryFailed       = errors.New("failed to deliver contact emails")
)

// ValidationError carries the per-field messages of a rejected submission.
type ValidationError struct {
	Fields validation.FieldErrors
}

func (e *ValidationError) Error() string {
	return "contact submission failed validation"
}

// DispatchResult records the outcome of each outbound email separately.
type DispatchResult struct {
	OwnerNotified    bool
	ConfirmationSent bool
	OwnerErr         error
	ConfirmationErr  error
}

// Partial reports whether exactly one of the two emails went out.
func (r DispatchResult) Partial() bool {
	return r.OwnerNotified != r.ConfirmationSent
}

// MailTransport sends mail through a relay
type MailTransport interface {
	// Verify checks reachability and credentials without sending anything.
	Verify(ctx context.Context) error
	Send(ctx context.Context, msg email.Message) error
}

// ContactUsecase defines the interface for contact form operations
type ContactUsecase interface {
	// SendContactMessage validates a submission and sends the owner notification
	// and the submitter confirmation
	SendContactMessage(ctx context.Context, req *ContactRequest) (*DispatchResult, error)
	// FallbackContact is the address shown to users when delivery fails
	FallbackContact() string
}
