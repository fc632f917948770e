package auth

import (
	"context"
	"errors"
	"log/slog"

	"altotrafico-web/internal/ratelimit"
	"altotrafico-web/internal/telemetry"
	"altotrafico-web/models"
	"altotrafico-web/utils"
)

// ErrInvalidCredentials is the only error Authorize returns. Callers cannot tell
// a throttled client from a wrong password or an unknown user.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserLookup finds an admin user by username. It returns (nil, nil) when absent.
type UserLookup interface {
	FindUserByUsername(ctx context.Context, username string) (*models.AdminUser, error)
}

type Authenticator struct {
	users   UserLookup
	limiter *ratelimit.Limiter
	metrics *telemetry.Metrics
	log     *slog.Logger
}

func NewAuthenticator(users UserLookup, limiter *ratelimit.Limiter, metrics *telemetry.Metrics) *Authenticator {
	return &Authenticator{
		users:   users,
		limiter: limiter,
		metrics: metrics,
		log:     slog.Default().With("component", "authenticator"),
	}
}

// Authorize checks one login attempt from clientKey.
func (a *Authenticator) Authorize(ctx context.Context, username, password, clientKey string) (*models.Identity, error) {
	if username == "" || password == "" {
		a.metrics.RecordLogin("denied")
		return nil, ErrInvalidCredentials
	}

	res := a.limiter.CheckAndConsume(clientKey)
	if !res.Allowed {
		a.log.Warn("login throttled", "client", clientKey)
		a.metrics.RecordLogin("limited")
		return nil, ErrInvalidCredentials
	}

	user, err := a.users.FindUserByUsername(ctx, username)
	if err != nil {
		a.log.Error("user lookup failed", "error", err)
		a.metrics.RecordLogin("denied")
		return nil, ErrInvalidCredentials
	}
	if user == nil || !utils.PasswordMatches(user.PasswordHash, password) {
		a.log.Info("login rejected", "client", clientKey, "remaining", res.Remaining)
		a.metrics.RecordLogin("denied")
		return nil, ErrInvalidCredentials
	}

	a.limiter.Reset(clientKey)
	a.metrics.RecordLogin("success")
	id := user.Identity()
	return &id, nil
}
