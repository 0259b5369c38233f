// Package guard throttles authentication by source address and keeps the
// security audit trail.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	PatternMultipleFailures    = "MULTIPLE_FAILED_ATTEMPTS"
	PatternRapidAttempts       = "RAPID_ATTEMPTS"
	PatternMultipleRestaurants = "MULTIPLE_RESTAURANTS"
)

// LimitError is returned while an address is blocked.
type LimitError struct {
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("too many failed attempts, retry in %s", e.RetryAfter.Round(time.Second))
}

// RetryAfterSeconds rounds up so clients never retry early.
func (e *LimitError) RetryAfterSeconds() int64 {
	secs := int64(e.RetryAfter / time.Second)
	if e.RetryAfter%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Attempt describes one authentication attempt for counting and auditing.
type Attempt struct {
	IP           string
	Strategy     string
	Organization string
	Target       string
	UserID       *uuid.UUID
	Reason       string
}

// Metrics receives guard counters; see internal/metrics.
type Metrics interface {
	RateLimited()
	Blocked()
	Suspicious(pattern string)
}

type Config struct {
	MaxFailures        int
	Window             time.Duration
	SuspiciousFailures int
	RapidInterval      time.Duration
	MaxTenants         int
}

func (c *Config) defaults() {
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.Window <= 0 {
		c.Window = 15 * time.Minute
	}
	if c.SuspiciousFailures <= 0 {
		c.SuspiciousFailures = 3
	}
	if c.RapidInterval <= 0 {
		c.RapidInterval = time.Minute
	}
	if c.MaxTenants <= 0 {
		c.MaxTenants = 3
	}
}

type Guard struct {
	cfg     Config
	store   Store
	sink    Sink
	metrics Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func New(cfg Config, store Store, sink Sink, metrics Metrics, logger *slog.Logger) *Guard {
	cfg.defaults()
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		cfg:     cfg,
		store:   store,
		sink:    sink,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock replaces the time source. Tests only.
func (g *Guard) SetClock(now func() time.Time) {
	g.now = now
}

func (g *Guard) Window() time.Duration { return g.cfg.Window }

// Check rejects an address that has used up its failures for the window.
// A store outage fails open and is logged.
func (g *Guard) Check(ctx context.Context, ip string) error {
	now := g.now()
	rec, err := g.store.Get(ctx, ip, now)
	if err != nil {
		g.logger.Error("attempt store lookup failed", "ip", ip, "error", err)
		return nil
	}

	until, blocked := rec.BlockedUntil(g.cfg.MaxFailures, g.cfg.Window)
	if !blocked || !now.Before(until) {
		return nil
	}

	limitErr := &LimitError{RetryAfter: until.Sub(now)}
	g.emit(ctx, Event{
		Type:     EventRateLimitExceeded,
		Severity: SeverityWarn,
		IP:       ip,
		Reason:   "rate_limit_exceeded",
		Metadata: map[string]string{
			"failures":    strconv.Itoa(rec.Failures),
			"retry_after": strconv.FormatInt(limitErr.RetryAfterSeconds(), 10),
		},
	})
	if g.metrics != nil {
		g.metrics.RateLimited()
	}
	return limitErr
}

// RecordFailure counts the failure, audits it and raises the suspicious
// signal when the address matches any pattern. It never blocks the caller.
func (g *Guard) RecordFailure(ctx context.Context, a Attempt) {
	now := g.now()
	rec, err := g.store.Increment(ctx, a.IP, a.Organization, now)
	if err != nil {
		g.logger.Error("attempt store increment failed", "ip", a.IP, "error", err)
	}

	g.emit(ctx, Event{
		Type:         EventFailedLogin,
		Severity:     SeverityWarn,
		IP:           a.IP,
		Strategy:     a.Strategy,
		Organization: a.Organization,
		Target:       a.Target,
		UserID:       a.UserID,
		Reason:       a.Reason,
		Metadata:     map[string]string{"failures": strconv.Itoa(rec.Failures)},
	})

	if err != nil {
		return
	}

	if patterns := g.suspicious(rec); len(patterns) > 0 {
		g.emit(ctx, Event{
			Type:         EventSuspiciousActivity,
			Severity:     SeverityAlert,
			IP:           a.IP,
			Strategy:     a.Strategy,
			Organization: a.Organization,
			Target:       a.Target,
			Reason:       strings.Join(patterns, ","),
			Metadata: map[string]string{
				"failures":    strconv.Itoa(rec.Failures),
				"restaurants": strconv.Itoa(rec.TenantCount),
			},
		})
		if g.metrics != nil {
			for _, p := range patterns {
				g.metrics.Suspicious(p)
			}
		}
	}

	if rec.Failures == g.cfg.MaxFailures {
		g.emit(ctx, Event{
			Type:     EventIPBlocked,
			Severity: SeverityAlert,
			IP:       a.IP,
			Reason:   "max_failed_attempts",
			Metadata: map[string]string{"blocked_until": rec.FirstAt.Add(g.cfg.Window).UTC().Format(time.RFC3339)},
		})
		if g.metrics != nil {
			g.metrics.Blocked()
		}
	}
}

// RecordSuccess audits the login and clears the address's counter.
func (g *Guard) RecordSuccess(ctx context.Context, a Attempt) {
	if err := g.store.Reset(ctx, a.IP); err != nil {
		g.logger.Error("attempt store reset failed", "ip", a.IP, "error", err)
	}
	g.emit(ctx, Event{
		Type:         EventSuccessfulLogin,
		Severity:     SeverityInfo,
		IP:           a.IP,
		Strategy:     a.Strategy,
		Organization: a.Organization,
		Target:       a.Target,
		UserID:       a.UserID,
		Success:      true,
	})
}

func (g *Guard) suspicious(rec Record) []string {
	var patterns []string
	if rec.Failures >= g.cfg.SuspiciousFailures {
		patterns = append(patterns, PatternMultipleFailures)
	}
	if !rec.PreviousAt.IsZero() && rec.LastAt.Sub(rec.PreviousAt) < g.cfg.RapidInterval {
		patterns = append(patterns, PatternRapidAttempts)
	}
	if rec.TenantCount > g.cfg.MaxTenants {
		patterns = append(patterns, PatternMultipleRestaurants)
	}
	return patterns
}

func (g *Guard) emit(ctx context.Context, e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = g.now().UTC()
	}
	g.sink.Emit(ctx, e)
}

// Sweep drops expired records from stores that need it.
func (g *Guard) Sweep(ctx context.Context) (int, error) {
	return g.store.Sweep(ctx, g.now())
}
