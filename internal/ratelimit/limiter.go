// Package ratelimit implements per-client fixed-window request counting with
// two independently configured tiers: a general tier for every request and a
// stricter tier reserved for write operations.
package ratelimit

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Tier names a rate-limiting policy.
type Tier string

const (
	// TierGeneral covers all inbound traffic.
	TierGeneral Tier = "general"
	// TierStrictWrite covers mutating operations with a tighter quota.
	TierStrictWrite Tier = "strict_write"
)

const (
	defaultGeneralWindow = 15 * time.Minute
	defaultGeneralMax    = 100

	// The strict-write tier is fixed: five minutes, twenty requests.
	strictWriteWindow = 5 * time.Minute
	strictWriteMax    = 20

	defaultSweepInterval = 5 * time.Minute

	// UnknownClient is the identity used when no network address, forwarded
	// header, or caller key is available.
	UnknownClient = "unknown"
)

// RateLimitedError reports a rejected request together with retry guidance.
type RateLimitedError struct {
	Tier              Tier
	Limit             int
	RetryAfterSeconds int64
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("ratelimit: %s quota of %d exceeded, retry in %ds", e.Tier, e.Limit, e.RetryAfterSeconds)
}

// Decision carries the quota metadata reported to callers on both admission
// and rejection.
type Decision struct {
	Allowed           bool
	Limit             int
	Remaining         int
	ResetTime         time.Time
	RetryAfterSeconds int64
}

type entry struct {
	count     int
	resetTime time.Time
}

// Config bundles limiter dependencies. The general tier is configurable;
// zero values fall back to fifteen minutes and one hundred requests.
type Config struct {
	GeneralWindow time.Duration
	GeneralMax    int
	SweepInterval time.Duration
	Clock         func() time.Time
	Logger        *zap.Logger
}

// Limiter tracks one fixed-window counter per (tier, client). A single mutex
// makes lookup, insert, increment, and sweep atomic per call, so concurrent
// requests from the same client never lose counts.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry

	generalWindow time.Duration
	generalMax    int
	sweepInterval time.Duration
	clock         func() time.Time
	logger        *zap.Logger

	sweepDone chan struct{}
	sweepOnce sync.Once
}

// NewLimiter constructs a Limiter. Call Start to run the background sweep.
func NewLimiter(cfg Config) *Limiter {
	window := cfg.GeneralWindow
	if window <= 0 {
		window = defaultGeneralWindow
	}
	maxRequests := cfg.GeneralMax
	if maxRequests <= 0 {
		maxRequests = defaultGeneralMax
	}
	sweepInterval := cfg.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Limiter{
		entries:       make(map[string]*entry),
		generalWindow: window,
		generalMax:    maxRequests,
		sweepInterval: sweepInterval,
		clock:         clock,
		logger:        logger,
		sweepDone:     make(chan struct{}),
	}
}

func (l *Limiter) tierPolicy(tier Tier) (time.Duration, int) {
	if tier == TierStrictWrite {
		return strictWriteWindow, strictWriteMax
	}
	return l.generalWindow, l.generalMax
}

// Allow applies the fixed-window algorithm for one request. The returned
// Decision always carries quota metadata; a non-nil error is a
// *RateLimitedError and means the request must be rejected.
func (l *Limiter) Allow(tier Tier, clientID string) (Decision, error) {
	window, maxRequests := l.tierPolicy(tier)
	key := string(tier) + ":" + clientID
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	current, exists := l.entries[key]
	switch {
	case !exists:
		current = &entry{count: 1, resetTime: now.Add(window)}
		l.entries[key] = current
	case !now.Before(current.resetTime):
		current.count = 1
		current.resetTime = now.Add(window)
	default:
		current.count++
	}

	decision := Decision{
		Limit:     maxRequests,
		ResetTime: current.resetTime,
	}

	if current.count > maxRequests {
		decision.Remaining = 0
		decision.RetryAfterSeconds = ceilSeconds(current.resetTime.Sub(now))
		l.logger.Warn("rate limit exceeded",
			zap.String("tier", string(tier)),
			zap.String("client_id", clientID),
			zap.Int64("retry_after_s", decision.RetryAfterSeconds),
		)
		return decision, &RateLimitedError{
			Tier:              tier,
			Limit:             maxRequests,
			RetryAfterSeconds: decision.RetryAfterSeconds,
		}
	}

	decision.Allowed = true
	decision.Remaining = maxRequests - current.count
	return decision, nil
}

// Start launches the periodic sweep that drops expired entries, bounding
// memory to recently active clients. Safe to call once; Stop ends it.
func (l *Limiter) Start() {
	go func() {
		ticker := time.NewTicker(l.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Sweep()
			case <-l.sweepDone:
				return
			}
		}
	}()
}

// Stop terminates the background sweep.
func (l *Limiter) Stop() {
	l.sweepOnce.Do(func() { close(l.sweepDone) })
}

// Sweep removes every entry whose window has ended.
func (l *Limiter) Sweep() {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, current := range l.entries {
		if !now.Before(current.resetTime) {
			delete(l.entries, key)
		}
	}
}

// Len reports the number of live counters across all tiers.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func ceilSeconds(d time.Duration) int64 {
	seconds := d / time.Second
	if d%time.Second != 0 {
		seconds++
	}
	if seconds < 0 {
		return 0
	}
	return int64(seconds)
}

// ClientID derives the limiter key for a request, preferring the network
// address, then the first forwarded hop, then a caller-supplied key, and
// finally UnknownClient. Colons are replaced so IPv6 literals cannot corrupt
// the tier-prefixed key format.
func ClientID(remoteAddr, forwardedFor, callerKey string) string {
	candidate := strings.TrimSpace(stripPort(remoteAddr))
	if candidate == "" {
		if first, _, _ := strings.Cut(forwardedFor, ","); strings.TrimSpace(first) != "" {
			candidate = strings.TrimSpace(first)
		}
	}
	if candidate == "" {
		candidate = strings.TrimSpace(callerKey)
	}
	if candidate == "" {
		candidate = UnknownClient
	}
	return strings.ReplaceAll(candidate, ":", "_")
}

// stripPort drops a trailing :port from host:port and [v6]:port forms.
// Addresses without a port, bare IPv6 literals included, pass through as-is.
func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
