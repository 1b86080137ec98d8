package mission

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvance(t *testing.T) {
	t.Parallel()

	t.Run("posts START command", func(t *testing.T) {
		t.Parallel()
		var got advanceRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/mode", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, time.Second)
		require.NoError(t, c.Advance(context.Background()))
		assert.Equal(t, CommandStart, got.Command)
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "operator busy", http.StatusConflict)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, time.Second)
		err := c.Advance(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "operator busy")
	})

	t.Run("hung controller times out", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer srv.Close()
		defer close(release)

		c := NewClient(srv.URL, 50*time.Millisecond)
		start := time.Now()
		err := c.Advance(context.Background())
		require.Error(t, err)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}

func TestPing(t *testing.T) {
	t.Parallel()

	t.Run("healthy", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/healthz", r.URL.Path)
		}))
		defer srv.Close()

		c := NewClient(srv.URL, time.Second)
		assert.NoError(t, c.Ping(context.Background()))
	})

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()
		c := NewClient("http://127.0.0.1:1", 200*time.Millisecond)
		assert.Error(t, c.Ping(context.Background()))
	})
}

func TestWaitReady(t *testing.T) {
	t.Parallel()

	t.Run("succeeds once endpoint appears", func(t *testing.T) {
		t.Parallel()
		var calls int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls < 3 {
				http.Error(w, "starting", http.StatusServiceUnavailable)
				return
			}
		}))
		defer srv.Close()

		c := NewClient(srv.URL, time.Second)
		require.NoError(t, c.WaitReady(context.Background(), 5, 5*time.Millisecond))
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		t.Parallel()
		c := NewClient("http://127.0.0.1:1", 50*time.Millisecond)
		err := c.WaitReady(context.Background(), 2, time.Millisecond)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not ready after 2 attempts")
	})

	t.Run("respects cancellation", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		c := NewClient("http://127.0.0.1:1", 50*time.Millisecond)
		err := c.WaitReady(ctx, 10, time.Second)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
