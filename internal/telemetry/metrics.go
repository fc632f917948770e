package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "altotrafico-web"

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	LoginAttempts       metric.Int64Counter
	UpstreamCalls       metric.Int64Counter
	UpstreamDuration    metric.Float64Histogram
	CircuitBreakerState metric.Int64Counter
	AuditEventsLogged   metric.Int64Counter
	LimiterSweeps       metric.Int64Counter
}

// InitMetrics initializes all application metrics against the global meter provider.
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.RequestCounter, err = meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.RequestDuration, err = meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.LoginAttempts, err = meter.Int64Counter(
		"auth.login.attempts",
		metric.WithDescription("Admin login attempts by outcome"),
	); err != nil {
		return nil, err
	}

	if m.UpstreamCalls, err = meter.Int64Counter(
		"upstream.calls.total",
		metric.WithDescription("Calls to HubSpot and the webchat API"),
	); err != nil {
		return nil, err
	}

	if m.UpstreamDuration, err = meter.Float64Histogram(
		"upstream.call.duration",
		metric.WithDescription("Upstream call duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.CircuitBreakerState, err = meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	); err != nil {
		return nil, err
	}

	if m.AuditEventsLogged, err = meter.Int64Counter(
		"audit.events.logged",
		metric.WithDescription("Total audit events logged"),
	); err != nil {
		return nil, err
	}

	if m.LimiterSweeps, err = meter.Int64Counter(
		"auth.limiter.swept",
		metric.WithDescription("Expired login limiter entries removed"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	)
	m.RequestCounter.Add(context.Background(), 1, attrs)
	m.RequestDuration.Record(context.Background(), duration, attrs)
}

// RecordLogin records one login attempt. outcome is "success", "denied" or "limited".
func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttempts.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("auth.outcome", outcome)))
}

func (m *Metrics) RecordUpstream(service, operation string, success bool, duration float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("operation", operation),
		attribute.Bool("success", success),
	)
	m.UpstreamCalls.Add(context.Background(), 1, attrs)
	m.UpstreamDuration.Record(context.Background(), duration, attrs)
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("state", state),
	))
}

// RecordAuditEvent records audit event logging
func (m *Metrics) RecordAuditEvent(action, resource string) {
	if m == nil {
		return
	}
	m.AuditEventsLogged.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("audit.action", action),
		attribute.String("audit.resource", resource),
	))
}

func (m *Metrics) RecordSweep(removed int) {
	if m == nil || removed == 0 {
		return
	}
	m.LimiterSweeps.Add(context.Background(), int64(removed))
}
