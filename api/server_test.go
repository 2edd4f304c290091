package api

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/procurebot/procurement-backend/pkg/logger"
)

func TestServeStopsOnCancel(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	srv := NewServer("0", http.NotFoundHandler())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, srv, logg) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNewServerAddr(t *testing.T) {
	srv := NewServer("8080", http.NotFoundHandler())
	require.Equal(t, ":8080", srv.Addr)
	require.NotZero(t, srv.ReadHeaderTimeout)
}
