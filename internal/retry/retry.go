package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseDelay      = 500 * time.Millisecond
	defaultMaxDelay       = 8 * time.Second
	defaultMultiplier     = 2.0
	defaultMaxAttempts    = 3
	defaultJitterFraction = 0.30
)

type Sleeper func(ctx context.Context, d time.Duration) error

// Policy is the transport-level retry policy shared by outbound HTTP calls.
// It is separate from any semantic retry a caller performs on the payload.
type Policy struct {
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	MaxAttempts    int
	JitterFraction float64
	Sleep          Sleeper
	Rand           func() float64
}

func DefaultPolicy() Policy {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return Policy{
		BaseDelay:      defaultBaseDelay,
		MaxDelay:       defaultMaxDelay,
		Multiplier:     defaultMultiplier,
		MaxAttempts:    defaultMaxAttempts,
		JitterFraction: defaultJitterFraction,
		Sleep:          defaultSleep,
		Rand:           rng.Float64,
	}
}

// HTTPStatusError marks a retryable upstream status that survived all
// attempts.
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return "upstream status " + strconv.Itoa(e.StatusCode)
}

// DoHTTP runs do until it returns a non-retryable result or attempts are
// exhausted. Retryable results are 408/429/5xx statuses and transient
// network errors; Retry-After is honored when present.
func DoHTTP(ctx context.Context, policy Policy, logger *slog.Logger, do func(ctx context.Context) (*http.Response, []byte, error)) (*http.Response, []byte, error) {
	policy = withDefaults(policy)

	var lastResp *http.Response
	var lastBody []byte
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		resp, body, err := do(ctx)
		lastResp, lastBody = resp, body

		switch {
		case err != nil:
			if !retryableNetErr(ctx, err) {
				return resp, body, err
			}
			lastErr = err
		case resp == nil:
			return nil, nil, errors.New("nil response from http client")
		case !retryableStatus(resp.StatusCode):
			return resp, body, nil
		default:
			lastErr = &HTTPStatusError{StatusCode: resp.StatusCode}
		}

		if attempt == policy.MaxAttempts {
			break
		}

		delay := policy.delay(attempt)
		if resp != nil {
			if after, ok := parseRetryAfter(resp.Header, time.Now()); ok {
				delay = minDuration(after, policy.MaxDelay)
			}
		}
		if logger != nil {
			logger.Warn("retrying request",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", policy.MaxAttempts),
				slog.String("reason", lastErr.Error()),
				slog.Duration("retry_in", delay))
		}
		if err := policy.Sleep(ctx, delay); err != nil {
			return nil, nil, err
		}
	}

	return lastResp, lastBody, lastErr
}

func withDefaults(p Policy) Policy {
	def := DefaultPolicy()
	if p.BaseDelay == 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Multiplier == 0 {
		p.Multiplier = def.Multiplier
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.JitterFraction == 0 {
		p.JitterFraction = def.JitterFraction
	}
	if p.Sleep == nil {
		p.Sleep = defaultSleep
	}
	if p.Rand == nil {
		p.Rand = def.Rand
	}
	return p
}

func (p Policy) delay(retryIndex int) time.Duration {
	if retryIndex < 1 {
		retryIndex = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(retryIndex-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	// Percentage jitter to avoid synchronized retries.
	if p.JitterFraction > 0 {
		delay *= 1 + (p.Rand()*2-1)*p.JitterFraction
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(header http.Header, now time.Time) (time.Duration, bool) {
	value := strings.TrimSpace(header.Get("Retry-After"))
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, true
		}
		return time.Duration(seconds) * time.Second, true
	}
	if parsed, err := http.ParseTime(value); err == nil {
		delay := parsed.Sub(now)
		if delay < 0 {
			delay = 0
		}
		return delay, true
	}
	return 0, false
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func retryableNetErr(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection reset")
}

func minDuration(a, b time.Duration) time.Duration {
	if a <= b {
		return a
	}
	return b
}
