package db

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := OpenRedis(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
}

func TestOpenRedisErrors(t *testing.T) {
	_, err := OpenRedis(context.Background(), "")
	assert.Error(t, err)

	_, err = OpenRedis(context.Background(), "://bad")
	assert.ErrorContains(t, err, "parse redis url")

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = OpenRedis(context.Background(), "redis://"+addr)
	assert.ErrorContains(t, err, "ping redis")
}
