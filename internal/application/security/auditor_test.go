package security

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/taskmaster/taskboard/internal/adapters/cache"
	"github.com/taskmaster/taskboard/internal/infrastructure/logger"
	"github.com/taskmaster/taskboard/internal/ports"
)

func newTestAuditor() (*Auditor, *observer.ObservedLogs) {
	core, logs := observer.New(zap.InfoLevel)
	a := NewAuditor(cache.NewMemoryCache(time.Minute), Config{}, prometheus.NewRegistry(), logger.FromZap(zap.New(core)))
	return a, logs
}

func suspicious(logs *observer.ObservedLogs, activity string) int {
	n := 0
	for _, e := range logs.FilterMessage("Security event").All() {
		if e.ContextMap()["activity"] == activity {
			n++
		}
	}
	return n
}

func TestFailedLoginsRaiseAlertFromThirdAttempt(t *testing.T) {
	a, logs := newTestAuditor()
	ctx := ports.WithClientInfo(context.Background(), ports.ClientInfo{IP: "10.0.0.1", UserAgent: "curl"})

	a.LogAuthAttempt(ctx, "alice@example.com", false, "wrong password")
	a.LogAuthAttempt(ctx, "alice@example.com", false, "wrong password")
	if got := suspicious(logs, ActivityMultipleFailedLogins); got != 0 {
		t.Fatalf("alerts after two failures: got %d, want 0", got)
	}

	a.LogAuthAttempt(ctx, "alice@example.com", false, "wrong password")
	a.LogAuthAttempt(ctx, "alice@example.com", false, "wrong password")
	if got := suspicious(logs, ActivityMultipleFailedLogins); got != 2 {
		t.Errorf("alerts after four failures: got %d, want 2", got)
	}

	if got := testutil.ToFloat64(a.Events().WithLabelValues(EventAuthFailure)); got != 4 {
		t.Errorf("auth failure counter: got %v, want 4", got)
	}
}

func TestFailedLoginsAreKeyedByIP(t *testing.T) {
	a, logs := newTestAuditor()

	for i, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		ctx := ports.WithClientInfo(context.Background(), ports.ClientInfo{IP: ip})
		a.LogAuthAttempt(ctx, "alice@example.com", false, "attempt "+string(rune('1'+i)))
	}
	if got := suspicious(logs, ActivityMultipleFailedLogins); got != 0 {
		t.Errorf("alerts across distinct IPs: got %d, want 0", got)
	}
}

func TestSuccessResetsCounter(t *testing.T) {
	a, logs := newTestAuditor()
	ctx := ports.WithClientInfo(context.Background(), ports.ClientInfo{IP: "10.0.0.1"})

	a.LogAuthAttempt(ctx, "bob@example.com", false, "")
	a.LogAuthAttempt(ctx, "bob@example.com", false, "")
	a.LogAuthAttempt(ctx, "bob@example.com", true, "")
	a.LogAuthAttempt(ctx, "bob@example.com", false, "")
	if got := suspicious(logs, ActivityMultipleFailedLogins); got != 0 {
		t.Errorf("alerts after reset: got %d, want 0", got)
	}
}

func TestAuthorizationFailureFields(t *testing.T) {
	a, logs := newTestAuditor()
	ctx := ports.WithClientInfo(context.Background(), ports.ClientInfo{IP: "10.0.0.9", UserAgent: "browser"})

	a.LogAuthorizationFailure(ctx, "user-1", "project:abc", "update")

	entries := logs.FilterMessage("Security event").All()
	if len(entries) != 1 {
		t.Fatalf("entries: got %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	for key, want := range map[string]string{
		"security_event": EventAuthorizationFailure,
		"user_id":        "user-1",
		"ip":             "10.0.0.9",
		"resource":       "project:abc",
		"action":         "update",
		"user_agent":     "browser",
	} {
		if got, _ := fields[key].(string); got != want {
			t.Errorf("%s: got %q, want %q", key, got, want)
		}
	}
}

func TestSuspiciousActivityDetails(t *testing.T) {
	a, logs := newTestAuditor()

	a.LogSuspiciousActivity(context.Background(), ActivityDuplicateRegistration, "alice@example.com", "")

	entries := logs.FilterMessage("Security event").All()
	if len(entries) != 1 {
		t.Fatalf("entries: got %d, want 1", len(entries))
	}
	details, _ := entries[0].ContextMap()["details"].(string)
	if !strings.HasPrefix(details, ActivityDuplicateRegistration+": ") {
		t.Errorf("details: got %q", details)
	}
}
