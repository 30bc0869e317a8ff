package v1

import (
	"errors"
	"fmt"
	"net/http"

	"ekuphumuleni-api/internal/delivery/http/middleware"
	"ekuphumuleni-api/internal/delivery/http/response"
	"ekuphumuleni-api/internal/domain"
	"ekuphumuleni-api/pkg/apperror"
	"ekuphumuleni-api/pkg/security"

	"github.com/gin-gonic/gin"
)

const (
	msgContactSent      = "Thank you for your message! We'll get back to you soon."
	msgInvalidRequest   = "Invalid request format"
	msgCorrectForm      = "Please correct the errors in the form"
	msgNotConfigured    = "Email service is not configured. Please try again later."
	msgUnavailable      = "Email service is temporarily unavailable. Please try again later."
	msgDeliveryTemplate = "Failed to send message. Please try again or contact us directly at %s."
	msgBodyTooLarge     = "Request body too large"
)

type ContactHandler struct {
	contactUC domain.ContactUsecase
	security  *security.SecurityLogger
}

// NewContactHandler registers the contact routes (public, no auth required)
func NewContactHandler(public *gin.RouterGroup, contactUC domain.ContactUsecase, sec *security.SecurityLogger, guards ...gin.HandlerFunc) {
	handler := &ContactHandler{
		contactUC: contactUC,
		security:  sec,
	}

	public.POST("/contact", append(guards, handler.SubmitContact)...)
}

// SubmitContact godoc
// @Summary      Submit Contact Form
// @Description  Validates a contact submission, notifies the site owner and sends the submitter a confirmation.
// @Tags         contact
// @Accept       json
// @Produce      json
// @Param        contact  body      domain.ContactRequest  true  "Contact Form Data"
// @Success      200      {object}  domain.ContactResponse
// @Failure      400      {object}  response.ErrorResponse
// @Failure      413      {object}  response.ErrorResponse
// @Failure      429      {object}  response.ErrorResponse
// @Failure      500      {object}  response.ErrorResponse
// @Failure      503      {object}  response.ErrorResponse
// @Router       /contact [post]
func (h *ContactHandler) SubmitContact(c *gin.Context) {
	var req domain.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.security.LogBodyTooLarge(c.Request.Context(),
				c.ClientIP(), c.Request.UserAgent(), c.GetString(response.RequestIDKey), c.Request.ContentLength, middleware.DefaultMaxBodyBytes,
			)
			c.Error(apperror.New(http.StatusRequestEntityTooLarge, msgBodyTooLarge, err))
			return
		}
		c.Error(apperror.BadRequest(msgInvalidRequest))
		return
	}

	if _, err := h.contactUC.SendContactMessage(c.Request.Context(), &req); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			h.security.LogValidationFailed(c.Request.Context(),
				req.Email, c.ClientIP(), c.GetString(response.RequestIDKey), verr.Fields.Fields(),
			)
		}
		c.Error(h.mapError(err))
		return
	}

	c.JSON(http.StatusOK, domain.ContactResponse{
		Message: msgContactSent,
		Success: true,
	})
}

func (h *ContactHandler) mapError(err error) *apperror.AppError {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return apperror.Validation(msgCorrectForm, verr.Fields)
	case errors.Is(err, domain.ErrNotConfigured):
		return apperror.New(http.StatusInternalServerError, msgNotConfigured, err)
	case errors.Is(err, domain.ErrTransportUnavailable):
		return apperror.Unavailable(msgUnavailable, err)
	case errors.Is(err, domain.ErrDeliveryFailed):
		return apperror.New(http.StatusInternalServerError, fmt.Sprintf(msgDeliveryTemplate, h.contactUC.FallbackContact()), err)
	default:
		return apperror.Internal(err)
	}
}
