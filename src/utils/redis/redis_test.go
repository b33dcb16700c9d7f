package redis_utils_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redis_utils "reminder/src/utils/redis"
)

type sampleData struct {
	Name  string
	Count int
}

func newTestHandler(t *testing.T) (*redis_utils.RedisHandler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return redis_utils.NewRedisHandlerWithClient(client), mr
}

func TestRedisHandlerSetGet(t *testing.T) {
	ctx := context.Background()
	handler, mr := newTestHandler(t)

	value := sampleData{Name: "reminder", Count: 3}
	require.NoError(t, handler.Set(ctx, "sample", value, time.Minute))

	var got sampleData
	require.NoError(t, handler.Get(ctx, "sample", &got))
	assert.Equal(t, value, got)

	mr.FastForward(2 * time.Minute)
	err := handler.Get(ctx, "sample", &got)
	assert.ErrorIs(t, err, redis_utils.ErrKeyMissing)
}

func TestRedisHandlerDeleteByPattern(t *testing.T) {
	ctx := context.Background()
	handler, _ := newTestHandler(t)

	require.NoError(t, handler.Set(ctx, "user:reminders:month:1:202405", "a", 0))
	require.NoError(t, handler.Set(ctx, "user:reminders:month:1:202406", "b", 0))
	require.NoError(t, handler.Set(ctx, "user:reminders:month:2:202405", "c", 0))

	require.NoError(t, handler.DeleteByPattern(ctx, "user:reminders:month:1:*"))

	exists, err := handler.Exists(ctx, "user:reminders:month:1:202405")
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = handler.Exists(ctx, "user:reminders:month:2:202405")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRedisHandlerHashHelpers(t *testing.T) {
	ctx := context.Background()
	handler, _ := newTestHandler(t)

	fields := map[string]interface{}{
		"1": sampleData{Name: "first", Count: 1},
		"2": sampleData{Name: "second", Count: 2},
	}
	require.NoError(t, handler.HSetJSON(ctx, "staged", fields, time.Minute))

	got, err := handler.HGetAll(ctx, "staged")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"Name":"first","Count":1}`, got["1"])

	require.NoError(t, handler.Delete(ctx, "staged"))
	got, err = handler.HGetAll(ctx, "staged")
	require.NoError(t, err)
	assert.Empty(t, got)
}
