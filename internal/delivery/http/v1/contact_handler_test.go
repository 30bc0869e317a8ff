package v1_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"ekuphumuleni-api/config"
	_ "ekuphumuleni-api/docs"
	v1 "ekuphumuleni-api/internal/delivery/http/v1"
	"ekuphumuleni-api/internal/domain"
	"ekuphumuleni-api/internal/usecase"
	"ekuphumuleni-api/pkg/email"
	"ekuphumuleni-api/pkg/security"
	"ekuphumuleni-api/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockContactUsecase is a testify mock of domain.ContactUsecase
type MockContactUsecase struct {
	mock.Mock
}

func (m *MockContactUsecase) SendContactMessage(ctx context.Context, req *domain.ContactRequest) (*domain.DispatchResult, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(*domain.DispatchResult)
	return result, args.Error(1)
}

func (m *MockContactUsecase) FallbackContact() string {
	return "admin@ekuphumuleni.org"
}

// MockTransport is a testify mock of domain.MailTransport
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Verify(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockTransport) Send(ctx context.Context, msg email.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func testConfig() *config.Config {
	return &config.Config{
		Environment:          "test",
		SiteName:             "Ekuphumuleni",
		SMTPHost:             "smtp.example.com",
		SMTPPort:             587,
		SMTPUser:             "relay@ekuphumuleni.org",
		SMTPPassword:         "secret",
		SMTPFromEmail:        "noreply@ekuphumuleni.org",
		ContactEmailTo:       "office@ekuphumuleni.org",
		ContactFallbackEmail: "admin@ekuphumuleni.org",
		RateLimitContact:     100,
		RateLimitWindow:      time.Hour,
	}
}

func newRouter(t *testing.T, cfg *config.Config, uc domain.ContactUsecase) *gin.Engine {
	t.Helper()
	return v1.NewRouter(v1.RouterDeps{
		ContactUC: uc,
		HealthUC:  usecase.NewHealthUsecase(cfg.MailSMTP(), nil),
		Config:    cfg,
	})
}

func postJSON(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

const validBody = `{"name":"Jo","email":"jo@x.co","message":"Hello, I have a question about visiting hours."}`

func TestSubmitContact(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		ucResult   *domain.DispatchResult
		ucErr      error
		wantStatus int
		wantError  string
	}{
		{
			name:       "delivery succeeds",
			body:       validBody,
			ucResult:   &domain.DispatchResult{OwnerNotified: true, ConfirmationSent: true},
			wantStatus: http.StatusOK,
		},
		{
			name:       "relay not configured",
			body:       validBody,
			ucErr:      domain.ErrNotConfigured,
			wantStatus: http.StatusInternalServerError,
			wantError:  "Email service is not configured. Please try again later.",
		},
		{
			name:       "relay unreachable",
			body:       validBody,
			ucErr:      fmt.Errorf("%w: dial tcp: refused", domain.ErrTransportUnavailable),
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "Email service is temporarily unavailable. Please try again later.",
		},
		{
			name:       "one email failed",
			body:       validBody,
			ucResult:   &domain.DispatchResult{OwnerNotified: true, ConfirmationErr: email.ErrSend},
			ucErr:      domain.ErrDeliveryFailed,
			wantStatus: http.StatusInternalServerError,
			wantError:  "Failed to send message. Please try again or contact us directly at admin@ekuphumuleni.org.",
		},
		{
			name:       "unexpected error",
			body:       validBody,
			ucErr:      errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := new(MockContactUsecase)
			uc.On("SendContactMessage", mock.Anything, mock.AnythingOfType("*domain.ContactRequest")).Return(tt.ucResult, tt.ucErr)

			w := postJSON(newRouter(t, testConfig(), uc), tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decode(t, w)
			if tt.wantError == "" {
				assert.Equal(t, "Thank you for your message! We'll get back to you soon.", body["message"])
				assert.Equal(t, true, body["success"])
			} else {
				assert.Equal(t, tt.wantError, body["error"])
				assert.NotContains(t, w.Body.String(), "refused")
			}
			uc.AssertExpectations(t)
		})
	}
}

func TestSubmitContactMalformed(t *testing.T) {
	bodies := map[string]string{
		"not json":      `name=Jo`,
		"truncated":     `{"name":"Jo"`,
		"wrong types":   `{"name":5,"email":"jo@x.co","message":"Hello there friend"}`,
		"empty body":    ``,
		"array payload": `[1,2,3]`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			uc := new(MockContactUsecase)
			w := postJSON(newRouter(t, testConfig(), uc), body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "Invalid request format", decode(t, w)["error"])
			uc.AssertNotCalled(t, "SendContactMessage", mock.Anything, mock.Anything)
		})
	}
}

func TestSubmitContactTooLarge(t *testing.T) {
	uc := new(MockContactUsecase)
	body := fmt.Sprintf(`{"name":"Jo","email":"jo@x.co","message":%q}`, strings.Repeat("a", 40<<10))

	w := postJSON(newRouter(t, testConfig(), uc), body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	uc.AssertNotCalled(t, "SendContactMessage", mock.Anything, mock.Anything)
}

func TestSubmitContactAcceptsEscapedUnicode(t *testing.T) {
	uc := new(MockContactUsecase)
	uc.On("SendContactMessage", mock.Anything, mock.MatchedBy(func(req *domain.ContactRequest) bool {
		return utf8.RuneCountInString(req.Message) == 2000
	})).Return(&domain.DispatchResult{OwnerNotified: true, ConfirmationSent: true}, nil)

	// 2000 emoji written as JSON surrogate-pair escapes, as json.dumps does by default.
	body := `{"name":"Jo","email":"jo@x.co","message":"` + strings.Repeat(`\ud83d\ude00`, 2000) + `"}`
	require.Greater(t, len(body), 16<<10)

	w := postJSON(newRouter(t, testConfig(), uc), body)

	assert.Equal(t, http.StatusOK, w.Code)
	uc.AssertExpectations(t)
}

func TestSubmitContactRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitContact = 1

	uc := new(MockContactUsecase)
	uc.On("SendContactMessage", mock.Anything, mock.Anything).Return(&domain.DispatchResult{OwnerNotified: true, ConfirmationSent: true}, nil).Once()
	r := newRouter(t, cfg, uc)

	assert.Equal(t, http.StatusOK, postJSON(r, validBody).Code)

	w := postJSON(r, validBody)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	uc.AssertNumberOfCalls(t, "SendContactMessage", 1)
}

func TestSubmitContactRateLimitClientIP(t *testing.T) {
	postFrom := func(r http.Handler, forwardedFor string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(validBody))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", forwardedFor)
		req.RemoteAddr = "192.0.2.1:40000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	sent := &domain.DispatchResult{OwnerNotified: true, ConfirmationSent: true}

	t.Run("Should ignore X-Forwarded-For from an untrusted peer", func(t *testing.T) {
		cfg := testConfig()
		cfg.RateLimitContact = 1
		uc := new(MockContactUsecase)
		uc.On("SendContactMessage", mock.Anything, mock.Anything).Return(sent, nil)
		r := newRouter(t, cfg, uc)

		codes := []int{
			postFrom(r, "198.51.100.1"),
			postFrom(r, "198.51.100.2"),
			postFrom(r, "198.51.100.3"),
		}

		assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
		uc.AssertNumberOfCalls(t, "SendContactMessage", 1)
	})

	t.Run("Should key on the forwarded client behind a trusted proxy", func(t *testing.T) {
		cfg := testConfig()
		cfg.RateLimitContact = 1
		cfg.TrustedProxies = []string{"192.0.2.0/24"}
		uc := new(MockContactUsecase)
		uc.On("SendContactMessage", mock.Anything, mock.Anything).Return(sent, nil)
		r := newRouter(t, cfg, uc)

		assert.Equal(t, http.StatusOK, postFrom(r, "198.51.100.1"))
		assert.Equal(t, http.StatusOK, postFrom(r, "198.51.100.2"))
		assert.Equal(t, http.StatusTooManyRequests, postFrom(r, "198.51.100.1"))
	})
}

// The handler wired to the real pipeline with only the relay mocked.
func TestSubmitContactEndToEnd(t *testing.T) {
	cfg := testConfig()

	newStack := func(t *testing.T, transport *MockTransport) *gin.Engine {
		composer, err := email.NewComposer(cfg.Composer())
		require.NoError(t, err)
		uc := usecase.NewContactUsecase(usecase.ContactConfig{
			SMTP:            cfg.MailSMTP(),
			FallbackContact: cfg.ContactFallbackEmail,
		}, transport, composer, nil)
		return newRouter(t, cfg, uc)
	}

	t.Run("Should send both emails and answer 200", func(t *testing.T) {
		transport := new(MockTransport)
		transport.On("Verify", mock.Anything).Return(nil)
		transport.On("Send", mock.Anything, mock.Anything).Return(nil)

		w := postJSON(newStack(t, transport), validBody)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"message":"Thank you for your message! We'll get back to you soon.","success":true}`, w.Body.String())
		transport.AssertNumberOfCalls(t, "Send", 2)
		transport.AssertCalled(t, "Send", mock.Anything, mock.MatchedBy(func(msg email.Message) bool {
			return msg.To == "office@ekuphumuleni.org" && msg.ReplyTo == "jo@x.co"
		}))
		transport.AssertCalled(t, "Send", mock.Anything, mock.MatchedBy(func(msg email.Message) bool {
			return msg.To == "jo@x.co"
		}))
	})

	t.Run("Should return only the failing field and never dial", func(t *testing.T) {
		transport := new(MockTransport)

		w := postJSON(newStack(t, transport), `{"name":"Jo","email":"jo@x.co","message":""}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decode(t, w)
		assert.Equal(t, "Please correct the errors in the form", body["error"])
		assert.Equal(t, map[string]interface{}{validation.FieldMessage: "Message is required"}, body["validationErrors"])
		transport.AssertNotCalled(t, "Verify", mock.Anything)
	})

	t.Run("Should report every failing field", func(t *testing.T) {
		transport := new(MockTransport)

		w := postJSON(newStack(t, transport), `{"name":"J","email":"not-an-email","message":"short"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		fields := decode(t, w)["validationErrors"].(map[string]interface{})
		assert.Equal(t, "Name must be at least 2 characters", fields["name"])
		assert.Equal(t, "Please enter a valid email address", fields["email"])
		assert.Equal(t, "Message must be at least 10 characters", fields["message"])
	})

	t.Run("Should answer 503 without sending when verify fails", func(t *testing.T) {
		transport := new(MockTransport)
		transport.On("Verify", mock.Anything).Return(email.ErrGreeting)

		w := postJSON(newStack(t, transport), validBody)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("Should answer 500 when one email fails", func(t *testing.T) {
		transport := new(MockTransport)
		transport.On("Verify", mock.Anything).Return(nil)
		transport.On("Send", mock.Anything, mock.MatchedBy(func(msg email.Message) bool { return msg.To == "jo@x.co" })).Return(email.ErrSend)
		transport.On("Send", mock.Anything, mock.Anything).Return(nil)

		w := postJSON(newStack(t, transport), validBody)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, decode(t, w)["error"], "admin@ekuphumuleni.org")
	})
}

func TestRoutes(t *testing.T) {
	t.Run("Should serve health", func(t *testing.T) {
		r := newRouter(t, testConfig(), new(MockContactUsecase))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "configured", body["data"].(map[string]interface{})["email"])
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("Should serve the OpenAPI document", func(t *testing.T) {
		r := newRouter(t, testConfig(), new(MockContactUsecase))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/swagger/doc.json", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "/contact")
	})

	t.Run("Should protect metrics when credentials are set", func(t *testing.T) {
		cfg := testConfig()
		cfg.MetricsUsername = "prom"
		cfg.MetricsPassword = "scrape"
		r := newRouter(t, cfg, new(MockContactUsecase))
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.SetBasicAuth("prom", "scrape")
		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "ekuphumuleni_http_requests_total")
	})

	t.Run("Should leave metrics open without credentials", func(t *testing.T) {
		r := newRouter(t, testConfig(), new(MockContactUsecase))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestSubmitContactSecurityEvents(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := testConfig()
	uc := new(MockContactUsecase)
	uc.On("SendContactMessage", mock.Anything, mock.Anything).Return(nil, &domain.ValidationError{
		Fields: validation.FieldErrors{"message": "Message is required", "email": "Please enter a valid email address"},
	})

	r := v1.NewRouter(v1.RouterDeps{
		ContactUC: uc,
		HealthUC:  usecase.NewHealthUsecase(cfg.MailSMTP(), nil),
		Config:    cfg,
		Security:  security.NewSecurityLogger(zap.New(core), "ekuphumuleni-api", "test"),
	})

	w := postJSON(r, `{"name":"Jo","email":"jo@x","message":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	events := logs.FilterMessage("validation_failed").All()
	require.Len(t, events, 1)
	fields := events[0].ContextMap()
	assert.Equal(t, "j***@x", fields["subject_value"])
	assert.Equal(t, map[string]interface{}{"fields": []string{"email", "message"}}, fields["details"])

	t.Run("Should record a capped body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/contact",
			strings.NewReader(fmt.Sprintf(`{"message":%q}`, strings.Repeat("a", 40<<10))))
		req.Header.Set("Content-Type", "application/json")
		req.ContentLength = -1
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, 1, logs.FilterMessage("body_too_large").Len())
	})
}
