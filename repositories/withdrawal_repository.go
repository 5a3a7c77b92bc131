package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HSouheill/evently_backend/config"
	"github.com/HSouheill/evently_backend/models"
)

// WithdrawalRepository persists withdrawals in the "withdrawals" collection.
// Every status change is a single conditional update on the expected prior status.
type WithdrawalRepository struct {
	collection *mongo.Collection
}

func NewWithdrawalRepository(db *mongo.Client) *WithdrawalRepository {
	return &WithdrawalRepository{
		collection: config.GetCollection(db, "withdrawals"),
	}
}

func (r *WithdrawalRepository) Insert(ctx context.Context, w *models.Withdrawal) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if w.ID.IsZero() {
		w.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, w)
	return err
}

func (r *WithdrawalRepository) FindByWithdrawalID(ctx context.Context, withdrawalID string) (*models.Withdrawal, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var w models.Withdrawal
	err := r.collection.FindOne(ctx, bson.M{"withdrawalId": withdrawalID}).Decode(&w)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// LatestWithdrawalID returns the withdrawalId of the most recently created record,
// or "" when the collection is empty.
func (r *WithdrawalRepository) LatestWithdrawalID(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.FindOne().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetProjection(bson.M{"withdrawalId": 1})

	var latest struct {
		WithdrawalID string `bson:"withdrawalId"`
	}
	err := r.collection.FindOne(ctx, bson.M{}, opts).Decode(&latest)
	if err == mongo.ErrNoDocuments {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return latest.WithdrawalID, nil
}

// transition moves a withdrawal from one status to another, applying extra fields.
// It returns ErrStatusMismatch when no document with that id is in status from.
func (r *WithdrawalRepository) transition(ctx context.Context, withdrawalID, from, to string, set bson.M) (*models.Withdrawal, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	fields := bson.M{"status": to, "updatedAt": time.Now()}
	for k, v := range set {
		fields[k] = v
	}

	filter := bson.M{"withdrawalId": withdrawalID, "status": from}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var w models.Withdrawal
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": fields}, opts).Decode(&w)
	if err == mongo.ErrNoDocuments {
		return nil, ErrStatusMismatch
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ClaimForPayout marks a pending withdrawal as processing
func (r *WithdrawalRepository) ClaimForPayout(ctx context.Context, withdrawalID string) (*models.Withdrawal, error) {
	return r.transition(ctx, withdrawalID, models.WithdrawalStatusPending, models.WithdrawalStatusProcessing, nil)
}

// MarkApproved records a successful payout on a claimed withdrawal
func (r *WithdrawalRepository) MarkApproved(ctx context.Context, withdrawalID, transID string, dateInitiated time.Time) (*models.Withdrawal, error) {
	return r.transition(ctx, withdrawalID, models.WithdrawalStatusProcessing, models.WithdrawalStatusApproved, bson.M{
		"transId":       transID,
		"dateInitiated": dateInitiated,
		"processedAt":   time.Now(),
	})
}

// ReleaseClaim puts a claimed withdrawal back to pending after a failed payout
func (r *WithdrawalRepository) ReleaseClaim(ctx context.Context, withdrawalID string) error {
	_, err := r.transition(ctx, withdrawalID, models.WithdrawalStatusProcessing, models.WithdrawalStatusPending, nil)
	return err
}

// Reject marks a pending withdrawal as rejected
func (r *WithdrawalRepository) Reject(ctx context.Context, withdrawalID, reason string) (*models.Withdrawal, error) {
	return r.transition(ctx, withdrawalID, models.WithdrawalStatusPending, models.WithdrawalStatusRejected, bson.M{
		"rejectionReason": reason,
		"processedAt":     time.Now(),
	})
}

// ListWithUsers returns withdrawals newest first joined with the owner's name.
// A nil userID lists every withdrawal.
func (r *WithdrawalRepository) ListWithUsers(ctx context.Context, userID *primitive.ObjectID) ([]models.WithdrawalWithUser, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	match := bson.M{}
	if userID != nil {
		match["userId"] = *userID
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   "userId",
			"foreignField": "_id",
			"as":           "user",
		}}},
		{{Key: "$addFields", Value: bson.M{
			"userName": bson.M{"$ifNull": bson.A{bson.M{"$arrayElemAt": bson.A{"$user.fullName", 0}}, ""}},
		}}},
		{{Key: "$project", Value: bson.M{"user": 0}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	withdrawals := []models.WithdrawalWithUser{}
	if err := cursor.All(ctx, &withdrawals); err != nil {
		return nil, err
	}
	return withdrawals, nil
}
