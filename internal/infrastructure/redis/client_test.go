package redis

import (
	"context"
	"net"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Connects(t *testing.T) {
	s := miniredis.RunT(t)
	ctx := context.Background()

	client, err := NewClient(ctx, "redis://"+s.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(ctx, "k", "v", 0).Err())
	s.CheckGet(t, "k", "v")
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(context.Background(), "://bad-url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis URL")
}

func TestNewClientWithTimeout_GivesUp(t *testing.T) {
	s := miniredis.RunT(t)
	url := "redis://" + s.Addr()
	s.Close()

	start := time.Now()
	_, err := NewClientWithTimeout(context.Background(), url, 200*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping redis")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestNewClientWithTimeout_StopsOnCancel(t *testing.T) {
	s := miniredis.RunT(t)
	url := "redis://" + s.Addr()
	s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := NewClientWithTimeout(ctx, url, time.Minute)
	require.Error(t, err)
}

func TestNewClientWithTimeout_WaitsForLateServer(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	s := miniredis.NewMiniRedis()
	t.Cleanup(s.Close)
	started := make(chan error, 1)
	go func() {
		time.Sleep(150 * time.Millisecond)
		started <- s.StartAddr(addr)
	}()

	client, err := NewClientWithTimeout(context.Background(), "redis://"+addr, 3*time.Second)
	require.NoError(t, <-started)
	require.NoError(t, err)
	_ = client.Close()
}
