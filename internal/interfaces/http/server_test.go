package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molcore/internal/config"
	"github.com/turtacn/molcore/internal/testutil"
)

func TestNewServer(t *testing.T) {
	cfg := config.Default().Server
	cfg.Port = 9191
	server := NewServer(cfg, http.NewServeMux(), nil)

	require.NotNil(t, server)
	assert.Equal(t, "0.0.0.0:9191", server.Addr())
	assert.Equal(t, cfg.ReadTimeout, server.srv.ReadTimeout)
	assert.Equal(t, cfg.WriteTimeout, server.srv.WriteTimeout)
	assert.NotNil(t, server.Handler())
}

func TestServer_ServeAndShutdown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("pong")) })

	logger := testutil.NewMockLogger()
	server := NewServer(config.Default().Server, mux, logger)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- server.Serve(ln) }()

	resp, err := http.Get(fmt.Sprintf("http://%s/ping", ln.Addr()))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ln.Addr().String(), server.Addr())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err, "graceful shutdown is not an error")
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
	assert.True(t, logger.HasMessage("info", "HTTP server listening"))
	assert.True(t, logger.HasMessage("info", "HTTP server stopped"))
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	server := NewServer(config.Default().Server, http.NewServeMux(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(ctx))
}

func TestServer_StartListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := config.Default().Server
	cfg.Host = "127.0.0.1"
	cfg.Port = ln.Addr().(*net.TCPAddr).Port
	err = NewServer(cfg, http.NewServeMux(), nil).Start()
	assert.Error(t, err)
}
