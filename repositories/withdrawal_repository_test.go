package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/HSouheill/evently_backend/models"
)

func withdrawalDoc(id, status string) bson.D {
	return bson.D{
		{Key: "_id", Value: primitive.NewObjectID()},
		{Key: "withdrawalId", Value: id},
		{Key: "userId", Value: primitive.NewObjectID()},
		{Key: "amount", Value: 1500.0},
		{Key: "status", Value: status},
	}
}

func TestWithdrawalTransitions(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("claim filters on pending", func(mt *mtest.T) {
		repo := NewWithdrawalRepository(mt.Client)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: withdrawalDoc("#WITH0001", "processing")}))

		w, err := repo.ClaimForPayout(context.Background(), "#WITH0001")
		require.NoError(mt, err)
		assert.Equal(mt, models.WithdrawalStatusProcessing, w.Status)

		cmd := mt.GetStartedEvent().Command
		query := cmd.Lookup("query").Document()
		assert.Equal(mt, "#WITH0001", query.Lookup("withdrawalId").StringValue())
		assert.Equal(mt, models.WithdrawalStatusPending, query.Lookup("status").StringValue())
		assert.Equal(mt, models.WithdrawalStatusProcessing, cmd.Lookup("update", "$set", "status").StringValue())
		assert.Equal(mt, true, cmd.Lookup("new").Boolean())
	})

	mt.Run("no match is a status mismatch", func(mt *mtest.T) {
		repo := NewWithdrawalRepository(mt.Client)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := repo.ClaimForPayout(context.Background(), "#WITH0001")
		assert.ErrorIs(mt, err, ErrStatusMismatch)
	})

	mt.Run("approve records provider reference", func(mt *mtest.T) {
		repo := NewWithdrawalRepository(mt.Client)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: withdrawalDoc("#WITH0001", "approved")}))

		initiated := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
		_, err := repo.MarkApproved(context.Background(), "#WITH0001", "TX9", initiated)
		require.NoError(mt, err)

		cmd := mt.GetStartedEvent().Command
		assert.Equal(mt, models.WithdrawalStatusProcessing, cmd.Lookup("query", "status").StringValue())
		set := cmd.Lookup("update", "$set").Document()
		assert.Equal(mt, models.WithdrawalStatusApproved, set.Lookup("status").StringValue())
		assert.Equal(mt, "TX9", set.Lookup("transId").StringValue())
		assert.True(mt, initiated.Equal(set.Lookup("dateInitiated").Time()))
		_, ok := set.Lookup("processedAt").TimeOK()
		assert.True(mt, ok)
	})

	mt.Run("release returns claim to pending", func(mt *mtest.T) {
		repo := NewWithdrawalRepository(mt.Client)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: withdrawalDoc("#WITH0001", "pending")}))

		require.NoError(mt, repo.ReleaseClaim(context.Background(), "#WITH0001"))

		cmd := mt.GetStartedEvent().Command
		assert.Equal(mt, models.WithdrawalStatusProcessing, cmd.Lookup("query", "status").StringValue())
		assert.Equal(mt, models.WithdrawalStatusPending, cmd.Lookup("update", "$set", "status").StringValue())
	})

	mt.Run("reject only from pending", func(mt *mtest.T) {
		repo := NewWithdrawalRepository(mt.Client)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := repo.Reject(context.Background(), "#WITH0001", "duplicate")
		assert.ErrorIs(mt, err, ErrStatusMismatch)

		cmd := mt.GetStartedEvent().Command
		assert.Equal(mt, models.WithdrawalStatusPending, cmd.Lookup("query", "status").StringValue())
		assert.Equal(mt, "duplicate", cmd.Lookup("update", "$set", "rejectionReason").StringValue())
	})
}

func TestWithdrawalLookups(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("find missing", func(mt *mtest.T) {
		repo := NewWithdrawalRepository(mt.Client)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "evently.withdrawals", mtest.FirstBatch))

		_, err := repo.FindByWithdrawalID(context.Background(), "#WITH0404")
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("latest id on empty collection", func(mt *mtest.T) {
		repo := NewWithdrawalRepository(mt.Client)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "evently.withdrawals", mtest.FirstBatch))

		id, err := repo.LatestWithdrawalID(context.Background())
		require.NoError(mt, err)
		assert.Empty(mt, id)

		cmd := mt.GetStartedEvent().Command
		assert.Equal(mt, int64(-1), cmd.Lookup("sort", "createdAt").AsInt64())
	})

	mt.Run("list joins owner name", func(mt *mtest.T) {
		repo := NewWithdrawalRepository(mt.Client)
		doc := append(withdrawalDoc("#WITH0002", "pending"), bson.E{Key: "userName", Value: "Sam Organizer"})
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "evently.withdrawals", mtest.FirstBatch, doc))

		owner := primitive.NewObjectID()
		list, err := repo.ListWithUsers(context.Background(), &owner)
		require.NoError(mt, err)
		require.Len(mt, list, 1)
		assert.Equal(mt, "#WITH0002", list[0].WithdrawalID)
		assert.Equal(mt, "Sam Organizer", list[0].UserName)

		stages, err := mt.GetStartedEvent().Command.Lookup("pipeline").Array().Values()
		require.NoError(mt, err)
		require.NotEmpty(mt, stages)
		match := stages[0].Document().Lookup("$match", "userId").ObjectID()
		assert.Equal(mt, owner, match)
	})
}

func TestCounterRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("next increments with upsert", func(mt *mtest.T) {
		repo := NewCounterRepository(mt.Client)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: "withdrawalId"}, {Key: "seq", Value: int64(42)},
		}}))

		seq, err := repo.Next(context.Background(), "withdrawalId")
		require.NoError(mt, err)
		assert.Equal(mt, int64(42), seq)

		cmd := mt.GetStartedEvent().Command
		assert.Equal(mt, "withdrawalId", cmd.Lookup("query", "_id").StringValue())
		assert.Equal(mt, int64(1), cmd.Lookup("update", "$inc", "seq").AsInt64())
		assert.Equal(mt, true, cmd.Lookup("upsert").Boolean())
		assert.Equal(mt, true, cmd.Lookup("new").Boolean())
	})

	mt.Run("seed never lowers", func(mt *mtest.T) {
		repo := NewCounterRepository(mt.Client)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 0}))

		require.NoError(mt, repo.Seed(context.Background(), "withdrawalId", 17))

		updates, err := mt.GetStartedEvent().Command.Lookup("updates").Array().Values()
		require.NoError(mt, err)
		require.Len(mt, updates, 1)
		stmt := updates[0].Document()
		assert.Equal(mt, int64(17), stmt.Lookup("u", "$max", "seq").AsInt64())
		assert.Equal(mt, true, stmt.Lookup("upsert").Boolean())
	})
}
