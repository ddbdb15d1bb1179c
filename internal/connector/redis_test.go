package connector

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSink(t *testing.T) {
	mr := miniredis.RunT(t)

	sink, err := NewRedisSink(map[string]interface{}{"addr": mr.Addr(), "key": "out"})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Write(ctx, map[string]interface{}{"code": 500}))
	require.NoError(t, sink.Write(ctx, "plain"))
	require.NoError(t, sink.Close(ctx))
	require.NoError(t, sink.Close(ctx))

	list, err := mr.List("out")
	require.NoError(t, err)
	assert.Equal(t, []string{`{"code":500}`, `"plain"`}, list)
}

func TestRedisSource(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.Lpush("in", `{"id":1}`)
	mr.Push("in", "not-json")

	src, err := NewRedisSource(map[string]interface{}{"addr": mr.Addr(), "path": "in", "blockMs": 50})
	require.NoError(t, err)

	rec := newRecorder()
	require.NoError(t, src.Start(context.Background(), rec))
	require.Eventually(t, func() bool { return len(rec.Events()) == 2 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, src.Stop(context.Background()))

	assert.Equal(t, map[string]interface{}{"id": float64(1)}, rec.Events()[0])
	assert.Equal(t, "not-json", rec.Events()[1])
}

func TestRedisSourceUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	src, err := NewRedisSource(map[string]interface{}{"addr": addr, "key": "in"})
	require.NoError(t, err)
	assert.Error(t, src.Start(context.Background(), newRecorder()))
}

func TestRedisOptions(t *testing.T) {
	_, _, err := redisOptions(map[string]interface{}{}, "sink")
	assert.EqualError(t, err, "redis sink requires a key")

	opts, key, err := redisOptions(map[string]interface{}{"key": "k", "url": "redis://:secret@cache:6380/2"}, "source")
	require.NoError(t, err)
	assert.Equal(t, "k", key)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
}
