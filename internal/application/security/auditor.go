// Package security writes the security audit trail: authentication
// attempts, authorization failures, rate-limit hits and suspicious activity.
package security

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/taskmaster/taskboard/internal/infrastructure/logger"
	"github.com/taskmaster/taskboard/internal/ports"
)

// Event types
const (
	EventAuthSuccess          = "AUTH_SUCCESS"
	EventAuthFailure          = "AUTH_FAILURE"
	EventAuthorizationFailure = "AUTHORIZATION_FAILURE"
	EventRateLimit            = "RATE_LIMIT"
	EventSuspiciousActivity   = "SUSPICIOUS_ACTIVITY"
)

// Suspicious activity kinds
const (
	ActivityMultipleFailedLogins  = "MULTIPLE_FAILED_LOGINS"
	ActivityDuplicateRegistration = "DUPLICATE_REGISTRATION"
	ActivityMissingToken          = "MISSING_TOKEN"
	ActivityTokenVerification     = "TOKEN_VERIFICATION_FAILED"
	ActivityInvalidUser           = "INVALID_USER"
	ActivityRevokedToken          = "REVOKED_TOKEN"
)

// Config tunes failed-login tracking
type Config struct {
	FailedLoginThreshold int
	FailedLoginWindow    time.Duration
}

// Auditor records security events. Every method is best-effort: a cache
// failure is logged and never surfaces to the caller.
type Auditor struct {
	logger *logger.Logger
	cache  ports.CacheRepository
	cfg    Config
	events *prometheus.CounterVec
}

// NewAuditor creates an auditor. When reg is non-nil the
// security_events_total counter is registered with it.
func NewAuditor(cache ports.CacheRepository, cfg Config, reg prometheus.Registerer, log *logger.Logger) *Auditor {
	if cfg.FailedLoginThreshold <= 0 {
		cfg.FailedLoginThreshold = 3
	}
	if cfg.FailedLoginWindow <= 0 {
		cfg.FailedLoginWindow = 15 * time.Minute
	}

	events := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "security_events_total",
			Help: "Total number of security events by type",
		},
		[]string{"type"},
	)
	if reg != nil {
		reg.MustRegister(events)
	}

	return &Auditor{
		logger: log.WithComponent("security"),
		cache:  cache,
		cfg:    cfg,
		events: events,
	}
}

// Events exposes the event counter, mainly for tests
func (a *Auditor) Events() *prometheus.CounterVec {
	return a.events
}

// LogAuthAttempt records a login or registration outcome. Repeated failures
// for the same email and IP within the window raise a suspicious-activity
// event.
func (a *Auditor) LogAuthAttempt(ctx context.Context, email string, success bool, details string) {
	client := ports.ClientInfoFrom(ctx)
	key := failedLoginKey(email, client.IP)

	if success {
		a.record(ctx, EventAuthSuccess, "", map[string]interface{}{"email": email, "details": details})
		if err := a.cache.Delete(ctx, key); err != nil {
			a.logger.Warnw("Failed to reset failed-login counter", "error", err)
		}
		return
	}

	a.record(ctx, EventAuthFailure, "", map[string]interface{}{"email": email, "details": details})

	count, err := a.cache.Increment(ctx, key, a.cfg.FailedLoginWindow)
	if err != nil {
		a.logger.Warnw("Failed to count failed login", "error", err)
		return
	}
	if count >= int64(a.cfg.FailedLoginThreshold) {
		a.LogSuspiciousActivity(ctx, ActivityMultipleFailedLogins,
			fmt.Sprintf("User %s has %d failed login attempts from IP %s", email, count, client.IP), "")
	}
}

// LogAuthorizationFailure records an attempt to reach a resource owned by
// someone else
func (a *Auditor) LogAuthorizationFailure(ctx context.Context, userID, resource, action string) {
	a.record(ctx, EventAuthorizationFailure, userID, map[string]interface{}{
		"resource": resource,
		"action":   action,
	})
}

// LogRateLimit records a rejected request
func (a *Auditor) LogRateLimit(ctx context.Context, endpoint string) {
	a.record(ctx, EventRateLimit, "", map[string]interface{}{
		"resource": endpoint,
		"details":  "Rate limit exceeded",
	})
}

// LogSuspiciousActivity records anything else worth a second look
func (a *Auditor) LogSuspiciousActivity(ctx context.Context, activity, details, userID string) {
	a.record(ctx, EventSuspiciousActivity, userID, map[string]interface{}{
		"activity": activity,
		"details":  fmt.Sprintf("%s: %s", activity, details),
	})
}

func (a *Auditor) record(ctx context.Context, event, userID string, details map[string]interface{}) {
	client := ports.ClientInfoFrom(ctx)
	details["user_agent"] = client.UserAgent
	if client.RequestID != "" {
		details["request_id"] = client.RequestID
	}

	a.events.WithLabelValues(event).Inc()
	a.logger.LogSecurityEvent(event, userID, client.IP, details)
}

func failedLoginKey(email, ip string) string {
	return "security:failed_login:" + email + ":" + ip
}
