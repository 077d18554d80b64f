package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moltocasto/podcast-qa/internal/port"
)

func newTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	q, err := ConnectRedis(t.Context(), "redis://"+mr.Addr(), "test:queue")
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q, mr
}

func TestRedisQueue_FIFO(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := t.Context()

	require.NoError(t, q.Enqueue(ctx, port.EmbedJob{PodcastID: 1, EpisodeID: 10}))
	require.NoError(t, q.Enqueue(ctx, port.EmbedJob{PodcastID: 1, EpisodeID: 11, ReplaceExisting: true}))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	first, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), first.EpisodeID)

	second, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(11), second.EpisodeID)
	assert.True(t, second.ReplaceExisting)
}

func TestRedisQueue_DequeueHonoursCancel(t *testing.T) {
	q, _ := newTestQueue(t)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedisQueue_BadPayload(t *testing.T) {
	q, mr := newTestQueue(t)
	_, err := mr.Lpush("test:queue", "not json")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	_, err = q.Dequeue(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrBadJob)
	assert.Contains(t, err.Error(), "decode job")

	require.NoError(t, q.Enqueue(ctx, port.EmbedJob{PodcastID: 1, EpisodeID: 12}))
	job, err := q.Dequeue(ctx)
	require.NoError(t, err, "the bad entry is gone")
	assert.Equal(t, int64(12), job.EpisodeID)
}

func TestConnectRedis_BadURL(t *testing.T) {
	_, err := ConnectRedis(t.Context(), "://nope", "k")
	require.Error(t, err)
}
