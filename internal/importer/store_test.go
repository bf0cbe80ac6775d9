package importer

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const isolatedImportTestRedisDB = 13

// newTestRedisClient returns a client on an isolated, flushed DB or skips the test.
func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       isolatedImportTestRedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	_, err := client.Ping(ctx).Result()
	cancel()
	if err != nil {
		_ = client.Close()
		t.Skipf("Skipping Redis-dependent test: no reachable Redis at %s (%v)", addr, err)
	}

	require.NoError(t, client.FlushDB(context.Background()).Err())
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}

func TestRedisStore_SaveGetList(t *testing.T) {
	client := newTestRedisClient(t)
	store := NewRedisStore(client, time.Hour)
	ctx := context.Background()

	base := time.Now().Add(-10 * time.Minute).Truncate(time.Millisecond)
	older := &Job{ID: "job-old", Kind: KindExercises, Status: StatusCompleted, CreatedAt: base}
	newer := &Job{ID: "job-new", Kind: KindExercises, Status: StatusRunning, Processed: 40, CreatedAt: base.Add(time.Minute)}
	require.NoError(t, store.Save(ctx, older))
	require.NoError(t, store.Save(ctx, newer))

	got, err := store.Get(ctx, "job-new")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, 40, got.Processed)

	ttl, err := client.TTL(ctx, JobKeyPrefix+"job-new").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	jobs, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-new", jobs[0].ID)
	assert.Equal(t, "job-old", jobs[1].ID)
}

func TestRedisStore_GetMissing(t *testing.T) {
	store := NewRedisStore(newTestRedisClient(t), time.Hour)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRedisStore_ListDropsExpiredEntries(t *testing.T) {
	client := newTestRedisClient(t)
	store := NewRedisStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Job{ID: "kept", CreatedAt: time.Now()}))
	require.NoError(t, store.Save(ctx, &Job{ID: "gone", CreatedAt: time.Now()}))
	require.NoError(t, client.Del(ctx, JobKeyPrefix+"gone").Err())

	jobs, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "kept", jobs[0].ID)

	members, err := client.ZRange(ctx, JobIndexKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, members)
}

func TestRedisStore_SaveTrimsIndexPastTTL(t *testing.T) {
	client := newTestRedisClient(t)
	store := NewRedisStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Job{ID: "ancient", CreatedAt: time.Now().Add(-3 * time.Hour)}))
	require.NoError(t, store.Save(ctx, &Job{ID: "recent", CreatedAt: time.Now().Add(-30 * time.Minute)}))
	require.NoError(t, store.Save(ctx, &Job{ID: "fresh", CreatedAt: time.Now()}))

	members, err := client.ZRange(ctx, JobIndexKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"recent", "fresh"}, members)
}
