package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/server/config"
	"github.com/dmitrijs2005/accountkeeper/internal/server/eventbus"
	"github.com/dmitrijs2005/accountkeeper/internal/server/mailer"
	"github.com/dmitrijs2005/accountkeeper/internal/server/projectors"
	"github.com/dmitrijs2005/accountkeeper/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.EndpointAddrHTTP = "127.0.0.1:0"
	c.SecretKey = config.DevSecretKey
	return c
}

func TestNewApp_InMemory(t *testing.T) {
	app, err := NewApp(context.Background(), memoryConfig())
	require.NoError(t, err)

	assert.IsType(t, &repomanager.MemoryRepositoryManager{}, app.repos)
	assert.IsType(t, &eventbus.MemoryBus{}, app.bus)
	assert.IsType(t, &mailer.LogSender{}, app.mailSender())
	assert.IsType(t, &projectors.MemoryDeduper{}, app.deduper())
	app.close(context.Background())
}

func TestNewApp_RejectsBadKey(t *testing.T) {
	c := memoryConfig()
	c.SecretKey = "short"
	_, err := NewApp(context.Background(), c)
	assert.Error(t, err)
}

func TestNewApp_RejectsUnknownLogBackend(t *testing.T) {
	c := memoryConfig()
	c.LogBackend = "syslog"
	_, err := NewApp(context.Background(), c)
	assert.Error(t, err)
}

func TestApp_SelectsConfiguredTransports(t *testing.T) {
	c := memoryConfig()
	c.SMTPHost = "smtp.example.com"
	c.RedisAddr = "127.0.0.1:6379"

	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)
	defer app.close(context.Background())

	assert.IsType(t, &mailer.SMTPSender{}, app.mailSender())
	assert.IsType(t, &projectors.RedisDeduper{}, app.deduper())
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	app, err := NewApp(context.Background(), memoryConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestApp_RunStopsWhenComponentFails(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	c := memoryConfig()
	c.EndpointAddrHTTP = ln.Addr().String()
	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "http server")
	case <-time.After(5 * time.Second):
		t.Fatal("Run kept going after the HTTP server failed")
	}
}
