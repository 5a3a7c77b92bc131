package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func newRedisOTPStore(t *testing.T) (*RedisOTPStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisOTPStore(client), mr
}

func TestRedisOTPStoreCodeLifecycle(t *testing.T) {
	store, mr := newRedisOTPStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCode(ctx, "sam@example.com", "hash-1", 10*time.Minute))
	got, err := store.GetCode(ctx, "sam@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", got)
	assert.Equal(t, 10*time.Minute, mr.TTL("withdrawal_otp:code:sam@example.com"))

	deleted, err := store.DeleteCode(ctx, "sam@example.com")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteCode(ctx, "sam@example.com")
	require.NoError(t, err)
	assert.False(t, deleted, "second delete must lose")

	_, err = store.GetCode(ctx, "sam@example.com")
	assert.ErrorIs(t, err, ErrOTPNotFound)
}

func TestRedisOTPStoreCodeExpires(t *testing.T) {
	store, mr := newRedisOTPStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCode(ctx, "sam@example.com", "hash-1", 10*time.Minute))
	mr.FastForward(10*time.Minute + time.Second)

	_, err := store.GetCode(ctx, "sam@example.com")
	assert.ErrorIs(t, err, ErrOTPNotFound)
}

func TestRedisOTPStoreVerifiedIsSingleUse(t *testing.T) {
	store, mr := newRedisOTPStore(t)
	ctx := context.Background()

	ok, err := store.ConsumeVerified(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetVerified(ctx, "u1", 5*time.Minute))
	ok, err = store.ConsumeVerified(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ConsumeVerified(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetVerified(ctx, "u1", 5*time.Minute))
	mr.FastForward(5*time.Minute + time.Second)
	ok, err = store.ConsumeVerified(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok, "expired verification consumed")
}

func TestRedisOTPStoreAttemptsWindow(t *testing.T) {
	store, mr := newRedisOTPStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := store.IncrAttempts(ctx, "u1", 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	assert.Equal(t, 15*time.Minute, mr.TTL("withdrawal_otp:attempts:u1"))

	mr.FastForward(15*time.Minute + time.Second)
	n, err := store.IncrAttempts(ctx, "u1", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, store.ResetAttempts(ctx, "u1"))
	assert.False(t, mr.Exists("withdrawal_otp:attempts:u1"))
}

func TestRedisOTPStoreAttemptsWithoutExpiryHeal(t *testing.T) {
	store, mr := newRedisOTPStore(t)
	ctx := context.Background()

	// a counter left behind by an INCR whose EXPIRE never landed
	require.NoError(t, mr.Set("withdrawal_otp:attempts:u1", "7"))
	require.Zero(t, mr.TTL("withdrawal_otp:attempts:u1"))

	n, err := store.IncrAttempts(ctx, "u1", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
	assert.Equal(t, 15*time.Minute, mr.TTL("withdrawal_otp:attempts:u1"))
}

func TestMongoOTPStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("consume verified once", func(mt *mtest.T) {
		store := NewMongoOTPStore(mt.Client)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: "verified:u1"}, {Key: "kind", Value: "verified"}, {Key: "value", Value: "1"},
		}}))

		ok, err := store.ConsumeVerified(context.Background(), "u1")
		require.NoError(mt, err)
		assert.True(mt, ok)

		cmd := mt.GetStartedEvent().Command
		assert.Equal(mt, true, cmd.Lookup("remove").Boolean())
		query := cmd.Lookup("query").Document()
		assert.Equal(mt, "verified:u1", query.Lookup("_id").StringValue())
		_, hasExpiry := query.Lookup("expiresAt", "$gt").TimeOK()
		assert.True(mt, hasExpiry, "expired records must not match")
	})

	mt.Run("consume verified missing", func(mt *mtest.T) {
		store := NewMongoOTPStore(mt.Client)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		ok, err := store.ConsumeVerified(context.Background(), "u1")
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("delete code reports loser", func(mt *mtest.T) {
		store := NewMongoOTPStore(mt.Client)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		deleted, err := store.DeleteCode(context.Background(), "sam@example.com")
		require.NoError(mt, err)
		assert.False(mt, deleted)
	})

	mt.Run("increment attempts", func(mt *mtest.T) {
		store := NewMongoOTPStore(mt.Client)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
				{Key: "_id", Value: "attempts:u1"}, {Key: "attempts", Value: int64(2)},
			}}),
		)

		n, err := store.IncrAttempts(context.Background(), "u1", 15*time.Minute)
		require.NoError(mt, err)
		assert.Equal(mt, int64(2), n)

		events := mt.GetAllStartedEvents()
		require.Len(mt, events, 2)
		assert.Equal(mt, "delete", events[0].CommandName)
		update := events[1].Command.Lookup("update").Document()
		assert.Equal(mt, int64(1), update.Lookup("$inc", "attempts").AsInt64())
		assert.Equal(mt, true, events[1].Command.Lookup("upsert").Boolean())
	})
}
