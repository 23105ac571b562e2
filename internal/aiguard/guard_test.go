package aiguard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func TestQuotaState(t *testing.T) {
	clock := &manualClock{t: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}
	q := NewQuotaState(2, clock)

	require.NoError(t, q.Acquire())
	require.NoError(t, q.Acquire())

	err := q.Acquire()
	require.Error(t, err)
	assert.True(t, IsQuotaExceeded(err))
	assert.True(t, IsQuotaExceeded(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsQuotaExceeded(errors.New("other")))

	t.Run("same day later still rejected", func(t *testing.T) {
		clock.Set(time.Date(2024, 6, 1, 23, 59, 59, 0, time.UTC))
		assert.Error(t, q.Acquire())
	})

	t.Run("day rollover resets the counter", func(t *testing.T) {
		clock.Set(time.Date(2024, 6, 2, 0, 0, 1, 0, time.UTC))
		_, used, _ := q.Usage()
		assert.Equal(t, 0, used)
		assert.NoError(t, q.Acquire())
		day, used, limit := q.Usage()
		assert.Equal(t, "2024-06-02", day)
		assert.Equal(t, 1, used)
		assert.Equal(t, 2, limit)
	})
}

func TestGuard_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("251st call in a day never reaches the provider", func(t *testing.T) {
		clock := &manualClock{t: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}
		provider := new(MockGenerator)
		provider.On("Generate", ctx, "prompt").Return("docs", nil).Times(250)

		guard := NewGuard(provider, NewQuotaState(250, clock), NewPacer(0), testLogger())
		for i := 0; i < 250; i++ {
			out, err := guard.Generate(ctx, "prompt")
			require.NoError(t, err, "call %d", i+1)
			require.Equal(t, "docs", out)
		}

		_, err := guard.Generate(ctx, "prompt")
		require.Error(t, err)
		assert.True(t, IsQuotaExceeded(err))
		provider.AssertNumberOfCalls(t, "Generate", 250)

		clock.Set(time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC))
		provider.On("Generate", ctx, "prompt").Return("next day", nil).Once()
		out, err := guard.Generate(ctx, "prompt")
		require.NoError(t, err)
		assert.Equal(t, "next day", out)
		provider.AssertNumberOfCalls(t, "Generate", 251)
	})

	t.Run("nil quota is unlimited", func(t *testing.T) {
		provider := new(MockGenerator)
		provider.On("Generate", ctx, "p").Return("ok", nil)
		guard := NewGuard(provider, nil, nil, testLogger())

		for i := 0; i < 300; i++ {
			_, err := guard.Generate(ctx, "p")
			require.NoError(t, err)
		}
	})

	t.Run("paces every call", func(t *testing.T) {
		provider := new(MockGenerator)
		provider.On("Generate", ctx, "p").Return("ok", nil)
		var waits []time.Duration
		pacer := NewPacer(time.Second)
		pacer.sleep = func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		}
		guard := NewGuard(provider, nil, pacer, testLogger())

		for i := 0; i < 3; i++ {
			_, err := guard.Generate(ctx, "p")
			require.NoError(t, err)
		}
		assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, waits)
	})

	t.Run("cancelled context aborts the pacing wait", func(t *testing.T) {
		provider := new(MockGenerator)
		guard := NewGuard(provider, nil, NewPacer(time.Hour), testLogger())
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := guard.Generate(cctx, "p")
		assert.ErrorIs(t, err, context.Canceled)
		provider.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("provider rate limits are surfaced", func(t *testing.T) {
		provider := new(MockGenerator)
		provider.On("Generate", ctx, "p").Return("", fmt.Errorf("%w: 429", ErrProviderRateLimited))
		guard := NewGuard(provider, nil, nil, testLogger())

		_, err := guard.Generate(ctx, "p")
		assert.ErrorIs(t, err, ErrProviderRateLimited)
		assert.False(t, IsQuotaExceeded(err))
	})
}

func newTestGemini(t *testing.T, handler http.Handler) *GeminiGenerator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "AIzaTestKey",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: server.URL},
	})
	require.NoError(t, err)
	return &GeminiGenerator{models: client.Models, model: DefaultModel, logger: testLogger()}
}

func TestGeminiGenerator_Generate(t *testing.T) {
	t.Run("returns candidate text", func(t *testing.T) {
		g := newTestGemini(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.URL.Path, DefaultModel+":generateContent")
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintln(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"# Summary"}]}}],
				"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":3}}`)
		}))

		out, err := g.Generate(context.Background(), "document this")
		require.NoError(t, err)
		assert.Equal(t, "# Summary", out)
	})

	t.Run("maps 429 to ErrProviderRateLimited", func(t *testing.T) {
		var calls int32
		g := newTestGemini(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprintln(w, `{"error":{"code":429,"message":"Resource exhausted","status":"RESOURCE_EXHAUSTED"}}`)
		}))

		_, err := g.Generate(context.Background(), "document this")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProviderRateLimited)
		assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
	})

	t.Run("other failures are plain errors", func(t *testing.T) {
		g := newTestGemini(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintln(w, `{"error":{"code":400,"message":"bad request","status":"INVALID_ARGUMENT"}}`)
		}))

		_, err := g.Generate(context.Background(), "document this")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrProviderRateLimited)
	})
}

func TestIsRateLimitError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Error 429, Message: Resource exhausted"), true},
		{errors.New("googleapi: RESOURCE_EXHAUSTED"), true},
		{errors.New("Error 500, Message: internal"), false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, isRateLimitError(tc.err), "%v", tc.err)
	}
}
