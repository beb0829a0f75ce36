package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newFakeClient() *fakeClient {
	return &fakeClient{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeClient) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.values[key] = value.(string)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func TestCacheRoundTrip(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	c := New(client, Config{Prefix: "insider", Entity: "issuer", TTL: time.Hour})
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "0000320193")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "0000320193", 7))
	assert.Equal(t, "7", client.values["insider:issuer:0000320193"])
	assert.Equal(t, time.Hour, client.ttls["insider:issuer:0000320193"])

	id, ok, err := c.Get(ctx, "0000320193")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
}

func TestCacheErrors(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.values["form:bad"] = "not-a-number"
	c := New(client, Config{Entity: "form"})

	_, _, err := c.Get(context.Background(), "bad")
	require.Error(t, err)

	client.err = errors.New("connection refused")
	_, _, err = c.Get(context.Background(), "x")
	require.Error(t, err)
	require.Error(t, c.Set(context.Background(), "x", 1))
}

func TestConnectRejectsBadURL(t *testing.T) {
	t.Parallel()

	_, err := Connect(context.Background(), "not a url")
	require.Error(t, err)
}
