package usecase

import (
	"context"
	"time"

	"ekuphumuleni-api/pkg/email"
)

type HealthUsecase interface {
	Check(ctx context.Context) map[string]string
}

// Pinger is satisfied by the Redis health check.
type Pinger func(ctx context.Context) error

type healthUsecase struct {
	smtp  email.SMTPConfig
	redis Pinger
}

// NewHealthUsecase reports static readiness. redis may be nil when rate limiting
// runs in memory.
func NewHealthUsecase(smtp email.SMTPConfig, redis Pinger) HealthUsecase {
	return &healthUsecase{smtp: smtp, redis: redis}
}

// Check never dials SMTP; relay reachability is verified per submission.
func (u *healthUsecase) Check(ctx context.Context) map[string]string {
	status := map[string]string{
		"status":     "ok",
		"email":      "configured",
		"rate_limit": "memory",
	}
	if !u.smtp.IsConfigured() {
		status["email"] = "not_configured"
	}

	if u.redis != nil {
		ctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := u.redis(ctx); err != nil {
			status["rate_limit"] = "memory (redis unreachable)"
		} else {
			status["rate_limit"] = "redis"
		}
	}

	return status
}
