package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func fakePolicy(slept *[]time.Duration) Policy {
	return Policy{
		BaseDelay:      100 * time.Millisecond,
		MaxDelay:       time.Second,
		Multiplier:     2.0,
		MaxAttempts:    3,
		JitterFraction: -1, // sentinel below zero skips jitter entirely
		Sleep: func(ctx context.Context, d time.Duration) error {
			*slept = append(*slept, d)
			return nil
		},
		Rand: func() float64 { return 0.5 },
	}
}

func httpResp(status int) *http.Response {
	return &http.Response{StatusCode: status, Header: http.Header{}}
}

func TestDoHTTPSucceedsFirstAttempt(t *testing.T) {
	var slept []time.Duration
	var calls int

	resp, body, err := DoHTTP(context.Background(), fakePolicy(&slept), nil, func(ctx context.Context) (*http.Response, []byte, error) {
		calls++
		return httpResp(200), []byte("ok"), nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.StatusCode != 200 || string(body) != "ok" {
		t.Fatalf("unexpected result: %d %q", resp.StatusCode, body)
	}
	if calls != 1 || len(slept) != 0 {
		t.Fatalf("calls=%d sleeps=%d, want 1 and 0", calls, len(slept))
	}
}

func TestDoHTTPRetriesTransientStatuses(t *testing.T) {
	var slept []time.Duration
	var calls int

	resp, _, err := DoHTTP(context.Background(), fakePolicy(&slept), nil, func(ctx context.Context) (*http.Response, []byte, error) {
		calls++
		if calls < 3 {
			return httpResp(503), nil, nil
		}
		return httpResp(200), []byte("ok"), nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if calls != 3 || len(slept) != 2 {
		t.Fatalf("calls=%d sleeps=%d, want 3 and 2", calls, len(slept))
	}
	// Exponential backoff without jitter: 100ms then 200ms.
	if slept[0] != 100*time.Millisecond || slept[1] != 200*time.Millisecond {
		t.Fatalf("unexpected delays: %v", slept)
	}
}

func TestDoHTTPDoesNotRetryClientErrors(t *testing.T) {
	var slept []time.Duration
	var calls int

	resp, _, err := DoHTTP(context.Background(), fakePolicy(&slept), nil, func(ctx context.Context) (*http.Response, []byte, error) {
		calls++
		return httpResp(400), []byte("bad"), nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if resp.StatusCode != 400 || calls != 1 {
		t.Fatalf("status=%d calls=%d, want 400 handed back after one attempt", resp.StatusCode, calls)
	}
}

func TestDoHTTPExhaustsAttempts(t *testing.T) {
	var slept []time.Duration
	var calls int

	_, _, err := DoHTTP(context.Background(), fakePolicy(&slept), nil, func(ctx context.Context) (*http.Response, []byte, error) {
		calls++
		return httpResp(500), nil, nil
	})
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != 500 {
		t.Fatalf("expected HTTPStatusError(500), got %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoHTTPHonorsRetryAfter(t *testing.T) {
	var slept []time.Duration
	var calls int

	_, _, err := DoHTTP(context.Background(), fakePolicy(&slept), nil, func(ctx context.Context) (*http.Response, []byte, error) {
		calls++
		if calls == 1 {
			resp := httpResp(429)
			resp.Header.Set("Retry-After", "2")
			return resp, nil, nil
		}
		return httpResp(200), nil, nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if len(slept) != 1 || slept[0] != minDuration(2*time.Second, time.Second) {
		t.Fatalf("delays = %v, want the Retry-After value capped at MaxDelay", slept)
	}
}

func TestDoHTTPStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var slept []time.Duration
	_, _, err := DoHTTP(ctx, fakePolicy(&slept), nil, func(ctx context.Context) (*http.Response, []byte, error) {
		t.Fatalf("do must not run with a canceled context")
		return nil, nil, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDoHTTPNonRetryableNetworkError(t *testing.T) {
	var slept []time.Duration
	var calls int
	wantErr := errors.New("certificate verify failed")

	_, _, err := DoHTTP(context.Background(), fakePolicy(&slept), nil, func(ctx context.Context) (*http.Response, []byte, error) {
		calls++
		return nil, nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected original error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	header := http.Header{}
	header.Set("Retry-After", "5")
	if d, ok := parseRetryAfter(header, now); !ok || d != 5*time.Second {
		t.Fatalf("seconds form: got %v %v", d, ok)
	}

	header.Set("Retry-After", now.Add(30*time.Second).Format(http.TimeFormat))
	if d, ok := parseRetryAfter(header, now); !ok || d != 30*time.Second {
		t.Fatalf("http-date form: got %v %v", d, ok)
	}

	header.Set("Retry-After", "not-a-delay")
	if _, ok := parseRetryAfter(header, now); ok {
		t.Fatalf("garbage value must not parse")
	}

	if _, ok := parseRetryAfter(http.Header{}, now); ok {
		t.Fatalf("missing header must not parse")
	}
}
