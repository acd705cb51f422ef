package httpserver_test

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/creditkit/pkg/httpserver"
)

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

func TestServe(t *testing.T) {
	t.Parallel()

	t.Run("serves until the context ends", func(t *testing.T) {
		t.Parallel()
		srv := httpserver.New(httpserver.Config{ShutdownTimeout: time.Second})
		ln := listen(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- srv.Serve(ctx, ln, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			}))
		}()

		var resp *http.Response
		require.Eventually(t, func() bool {
			var err error
			resp, err = http.Get("http://" + ln.Addr().String())
			return err == nil
		}, 2*time.Second, 20*time.Millisecond)
		assert.Equal(t, http.StatusTeapot, resp.StatusCode)
		require.NoError(t, resp.Body.Close())

		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			require.Fail(t, "server did not stop")
		}
	})

	t.Run("in-flight requests finish during shutdown", func(t *testing.T) {
		t.Parallel()
		srv := httpserver.New(httpserver.Config{ShutdownTimeout: 2 * time.Second})
		ln := listen(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		started := make(chan struct{})
		done := make(chan error, 1)
		go func() {
			done <- srv.Serve(ctx, ln, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				close(started)
				time.Sleep(200 * time.Millisecond)
				w.WriteHeader(http.StatusOK)
			}))
		}()

		respCh := make(chan int, 1)
		go func() {
			resp, err := http.Get("http://" + ln.Addr().String())
			if err != nil {
				respCh <- 0
				return
			}
			_ = resp.Body.Close()
			respCh <- resp.StatusCode
		}()

		<-started
		cancel()
		assert.Equal(t, http.StatusOK, <-respCh)
		require.NoError(t, <-done)
	})

	t.Run("refuses a second concurrent serve", func(t *testing.T) {
		t.Parallel()
		srv := httpserver.New(httpserver.DefaultConfig())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		first := listen(t)
		done := make(chan error, 1)
		go func() { done <- srv.Serve(ctx, first, http.NotFoundHandler()) }()
		require.Eventually(t, func() bool {
			resp, err := http.Get("http://" + first.Addr().String())
			if err != nil {
				return false
			}
			_ = resp.Body.Close()
			return true
		}, 2*time.Second, 20*time.Millisecond)

		err := srv.Serve(ctx, listen(t), http.NotFoundHandler())
		assert.ErrorIs(t, err, httpserver.ErrRunning)

		cancel()
		require.NoError(t, <-done)
	})
}

func TestRunBadAddr(t *testing.T) {
	t.Parallel()
	srv := httpserver.New(httpserver.Config{Addr: "256.0.0.1:bad"})
	err := srv.Run(context.Background(), nil)
	assert.ErrorIs(t, err, httpserver.ErrStart)
}
