package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"ekuphumuleni-api/internal/domain"
	"ekuphumuleni-api/internal/metrics"
	"ekuphumuleni-api/pkg/email"
	"ekuphumuleni-api/pkg/validation"

	"golang.org/x/sync/errgroup"
)

// ContactConfig is the part of the application config the contact pipeline needs.
type ContactConfig struct {
	SMTP            email.SMTPConfig
	FallbackContact string
}

type contactUsecase struct {
	config    ContactConfig
	transport domain.MailTransport
	composer  *email.Composer
	logger    *slog.Logger
}

// NewContactUsecase creates a new contact usecase
func NewContactUsecase(cfg ContactConfig, transport domain.MailTransport, composer *email.Composer, logger *slog.Logger) domain.ContactUsecase {
	if logger == nil {
		logger = slog.Default()
	}
	return &contactUsecase{
		config:    cfg,
		transport: transport,
		composer:  composer,
		logger:    logger.With("component", "contact"),
	}
}

func (uc *contactUsecase) FallbackContact() string {
	return uc.config.FallbackContact
}

// SendContactMessage validates the contact request and sends both emails
func (uc *contactUsecase) SendContactMessage(ctx context.Context, req *domain.ContactRequest) (*domain.DispatchResult, error) {
	sub := email.Submission{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Message: strings.TrimSpace(req.Message),
	}

	// Submission content is personal data; only its shape is logged.
	logger := uc.logger.With(
		"name_length", utf8.RuneCountInString(sub.Name),
		"email_domain", emailDomain(sub.Email),
		"message_length", utf8.RuneCountInString(sub.Message),
	)
	logger.Info("contact submission received")

	if errs := validation.ValidateSubmission(sub.Name, sub.Email, sub.Message); errs.HasErrors() {
		metrics.ContactSubmissions.WithLabelValues("invalid").Inc()
		logger.Info("contact submission rejected", "fields", errs.Fields())
		return nil, &domain.ValidationError{Fields: errs}
	}

	if !uc.config.SMTP.IsConfigured() {
		metrics.ContactSubmissions.WithLabelValues("not_configured").Inc()
		logger.Error("smtp host, user or password missing")
		return nil, domain.ErrNotConfigured
	}

	start := time.Now()
	err := uc.transport.Verify(ctx)
	metrics.TransportVerifyDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ContactSubmissions.WithLabelValues("unavailable").Inc()
		logger.Error("smtp verify failed", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrTransportUnavailable, err)
	}

	owner, err := uc.composer.OwnerNotification(sub)
	if err != nil {
		return nil, fmt.Errorf("compose owner notification: %w", err)
	}
	confirmation, err := uc.composer.Confirmation(sub)
	if err != nil {
		return nil, fmt.Errorf("compose confirmation: %w", err)
	}

	// Once dispatch starts it runs to completion even if the client goes away.
	result := uc.dispatch(context.WithoutCancel(ctx), owner, confirmation)

	switch {
	case result.OwnerNotified && result.ConfirmationSent:
		metrics.ContactSubmissions.WithLabelValues("sent").Inc()
		logger.Info("contact emails sent")
		return result, nil
	case result.Partial():
		metrics.ContactSubmissions.WithLabelValues("partial").Inc()
		logger.Error("contact emails partially sent",
			"owner_notified", result.OwnerNotified,
			"confirmation_sent", result.ConfirmationSent,
			"owner_error", result.OwnerErr,
			"confirmation_error", result.ConfirmationErr,
		)
	default:
		metrics.ContactSubmissions.WithLabelValues("failed").Inc()
		logger.Error("contact emails not sent",
			"owner_error", result.OwnerErr,
			"confirmation_error", result.ConfirmationErr,
		)
	}

	return result, domain.ErrDeliveryFailed
}

// dispatch sends both emails concurrently and waits for both to finish.
func (uc *contactUsecase) dispatch(ctx context.Context, owner, confirmation email.Message) *domain.DispatchResult {
	result := &domain.DispatchResult{}

	var g errgroup.Group
	g.Go(func() error {
		result.OwnerErr = uc.transport.Send(ctx, owner)
		result.OwnerNotified = result.OwnerErr == nil
		recordSend("owner", result.OwnerErr)
		return result.OwnerErr
	})
	g.Go(func() error {
		result.ConfirmationErr = uc.transport.Send(ctx, confirmation)
		result.ConfirmationSent = result.ConfirmationErr == nil
		recordSend("confirmation", result.ConfirmationErr)
		return result.ConfirmationErr
	})
	_ = g.Wait()

	return result
}

func recordSend(kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.EmailsSent.WithLabelValues(kind, status).Inc()
}

func emailDomain(address string) string {
	if i := strings.LastIndexByte(address, '@'); i >= 0 {
		return address[i+1:]
	}
	return ""
}
