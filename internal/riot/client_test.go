package riot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, rps float64) (*Client, *[]Attempt) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	var mu sync.Mutex
	attempts := &[]Attempt{}
	c := NewClient(Config{
		BaseURL:           srv.URL,
		APIKey:            "test-key",
		RequestsPerSecond: rps,
		RetryBaseInterval: time.Millisecond,
		RetryMaxInterval:  10 * time.Millisecond,
		Logger:            zap.NewNop(),
		Observer: func(a Attempt) {
			mu.Lock()
			*attempts = append(*attempts, a)
			mu.Unlock()
		},
	})
	return c, attempts
}

func TestCall_Success(t *testing.T) {
	c, attempts := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("includeTimeline") != "true" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"matchId":42}`))
	}, 0)

	body, err := c.Call(context.Background(), MatchPath("na", 42), MatchParams(true))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if string(body) != `{"matchId":42}` {
		t.Errorf("body = %s", body)
	}
	if len(*attempts) != 1 || (*attempts)[0].Status != http.StatusOK {
		t.Errorf("attempts = %+v", *attempts)
	}
}

func TestCall_StatusHandling(t *testing.T) {
	tests := []struct {
		name         string
		statuses     []int
		retryAfter   string
		wantErr      error
		wantAttempts int
	}{
		{name: "not found is terminal", statuses: []int{404}, wantErr: ErrNotFound, wantAttempts: 1},
		{name: "rate limited then ok", statuses: []int{429, 200}, retryAfter: "0", wantAttempts: 2},
		{name: "server errors then ok", statuses: []int{500, 503, 502, 200}, wantAttempts: 4},
		{name: "forbidden is fatal", statuses: []int{403}, wantErr: ErrFatal, wantAttempts: 1},
		{name: "bad request is fatal", statuses: []int{400, 200}, wantErr: ErrFatal, wantAttempts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			c, attempts := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				i := int(atomic.AddInt32(&calls, 1)) - 1
				status := tt.statuses[len(tt.statuses)-1]
				if i < len(tt.statuses) {
					status = tt.statuses[i]
				}
				if status == http.StatusTooManyRequests {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(status)
				w.Write([]byte(`{}`))
			}, 0)

			_, err := c.Call(context.Background(), MatchListPath("na", 7), nil)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if len(*attempts) != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", len(*attempts), tt.wantAttempts)
			}
		})
	}
}

func TestCall_FatalCarriesStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("forbidden"))
	}, 0)

	_, err := c.Call(context.Background(), "/x", nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %T", err)
	}
	if se.StatusCode != http.StatusForbidden || se.Body != "forbidden" {
		t.Errorf("status error = %+v", se)
	}
}

func TestCall_RetriesUntilCancelled(t *testing.T) {
	c, attempts := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.Call(ctx, "/x", nil)
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("err = %v, want ErrServiceUnavailable", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
	if len(*attempts) < 3 {
		t.Errorf("expected several attempts before cancellation, got %d", len(*attempts))
	}
}

func TestCall_CancelledDuringRetryAttempt(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		// hold the retry open until the caller gives up
		<-r.Context().Done()
	}, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Call(ctx, "/x", nil)
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Errorf("err = %v, want ErrServiceUnavailable", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
	if !IsTransient(err) {
		t.Errorf("IsTransient(%v) = false", err)
	}
}

func TestCall_CancelledBeforeFailureIsNotTransient(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Call(ctx, "/x", nil)
	if !errors.Is(err, context.DeadlineExceeded) || IsTransient(err) {
		t.Errorf("err = %v, want a bare deadline error", err)
	}
}

func TestBackOffDoublesUpToCeiling(t *testing.T) {
	bo := newBackOff(time.Millisecond, 10*time.Millisecond)
	want := []time.Duration{1, 2, 4, 8, 10, 10}
	for i, w := range want {
		got := nextBackOff(bo, 10*time.Millisecond).Round(time.Microsecond)
		if got != w*time.Millisecond {
			t.Errorf("interval %d = %v, want %v", i+1, got, w*time.Millisecond)
		}
	}
}

func TestCall_RetryAfterIsHonoured(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[]`))
	}, 0)

	start := time.Now()
	if _, err := c.Call(context.Background(), "/x", nil); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("retried after %v, want at least 1s", elapsed)
	}
}

func TestCall_Throttles(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}, 20)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.Call(context.Background(), "/x", nil); err != nil {
			t.Fatalf("Call: %v", err)
		}
	}
	// The first call is immediate; the next two each wait 1/20s.
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("3 calls at 20 rps took %v, want >= 100ms", elapsed)
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", defaultRetryAfter},
		{"3", 3 * time.Second},
		{"-1", defaultRetryAfter},
		{"soon", defaultRetryAfter},
	}
	for _, tt := range tests {
		h := http.Header{}
		if tt.value != "" {
			h.Set("Retry-After", tt.value)
		}
		if got := retryAfter(h); got != tt.want {
			t.Errorf("retryAfter(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
