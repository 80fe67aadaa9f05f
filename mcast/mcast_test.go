package mcast

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointString(t *testing.T) {
	ep := Endpoint{Group: net.ParseIP("239.1.2.3"), Port: 5004}
	assert.Equal(t, "239.1.2.3:5004", ep.String())
}

func TestListenRejectsNonMulticastGroup(t *testing.T) {
	ep := Endpoint{Group: net.ParseIP("192.168.1.10"), Port: 5004}
	_, err := Listen(context.Background(), ep, ListenOptions{})
	assert.Error(t, err)
}

func TestListenTransmitRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("requires multicast-capable network namespace")
	}

	ep := Endpoint{Group: net.ParseIP("239.42.42.42"), Port: 15004}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	listener, err := Listen(ctx, ep, ListenOptions{})
	require.NoError(t, err)
	defer listener.Close()

	tx, err := NewTransmitSocket(ep, TransmitOptions{TTL: 1})
	require.NoError(t, err)
	defer tx.Close()

	payload := []byte("pagewatch-probe")
	_, err = tx.Write(payload)
	require.NoError(t, err)

	require.NoError(t, listener.SetReadDeadline(time.Now().Add(1*time.Second)))
	buf := make([]byte, 1500)
	n, _, err := listener.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, payload, buf[:n])
}

func TestLeaveIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("requires multicast-capable network namespace")
	}
	ep := Endpoint{Group: net.ParseIP("239.42.42.43"), Port: 15005}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	listener, err := Listen(ctx, ep, ListenOptions{})
	require.NoError(t, err)
	defer listener.Close()

	require.NoError(t, listener.Leave())
	require.NoError(t, listener.Leave())
}

func TestPoolSharesListenerPerEndpoint(t *testing.T) {
	if testing.Short() {
		t.Skip("requires multicast-capable network namespace")
	}
	pool := NewPool(ListenOptions{})
	defer pool.CloseAll()

	ep := Endpoint{Group: net.ParseIP("239.42.42.44"), Port: 15006}
	ctx := context.Background()

	l1, err := pool.Acquire(ctx, ep)
	require.NoError(t, err)
	l2, err := pool.Acquire(ctx, ep)
	require.NoError(t, err)
	assert.Same(t, l1, l2)

	require.NoError(t, pool.Release(ep))
}
