//go:build integration

package geo

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisQueue(t *testing.T) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { client.Close() })

	q := NewRedisQueue(client, "test:geo:jobs", 2)

	require.NoError(t, q.Push(ctx, Job{LogID: 1, IP: "203.0.113.1"}))
	require.NoError(t, q.Push(ctx, Job{LogID: 2, IP: "203.0.113.2"}))
	assert.ErrorIs(t, q.Push(ctx, Job{LogID: 3, IP: "203.0.113.3"}), ErrQueueFull)

	n, err := client.LLen(ctx, "test:geo:jobs").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// the overflow trimmed the oldest job
	job, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, Job{LogID: 2, IP: "203.0.113.2"}, job)

	job, err = q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), job.LogID)

	unbounded := NewRedisQueue(client, "test:geo:unbounded", 0)
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, unbounded.Push(ctx, Job{LogID: i}))
	}

	short, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
	defer cancel()
	_, err = q.Pop(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
