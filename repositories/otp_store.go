package repositories

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HSouheill/evently_backend/config"
	"github.com/HSouheill/evently_backend/models"
)

const (
	otpKindCode     = "code"
	otpKindVerified = "verified"
	otpKindAttempts = "attempts"
)

// RedisOTPStore keeps withdrawal OTP state in Redis with native key expiry
type RedisOTPStore struct {
	client *redis.Client
	prefix string
}

func NewRedisOTPStore(client *redis.Client) *RedisOTPStore {
	return &RedisOTPStore{client: client, prefix: "withdrawal_otp:"}
}

func (s *RedisOTPStore) key(kind, id string) string {
	return s.prefix + kind + ":" + id
}

func (s *RedisOTPStore) SaveCode(ctx context.Context, email, codeHash string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(otpKindCode, email), codeHash, ttl).Err()
}

func (s *RedisOTPStore) GetCode(ctx context.Context, email string) (string, error) {
	hash, err := s.client.Get(ctx, s.key(otpKindCode, email)).Result()
	if err == redis.Nil {
		return "", ErrOTPNotFound
	}
	return hash, err
}

// DeleteCode removes the code and reports whether this call was the one that removed it
func (s *RedisOTPStore) DeleteCode(ctx context.Context, email string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(otpKindCode, email)).Result()
	return n > 0, err
}

func (s *RedisOTPStore) SetVerified(ctx context.Context, userID string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(otpKindVerified, userID), "1", ttl).Err()
}

func (s *RedisOTPStore) ConsumeVerified(ctx context.Context, userID string) (bool, error) {
	_, err := s.client.GetDel(ctx, s.key(otpKindVerified, userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// IncrAttempts counts verification attempts inside a fixed window.
// A counter found without an expiry gets one, so a failed EXPIRE cannot lock a user out.
func (s *RedisOTPStore) IncrAttempts(ctx context.Context, userID string, window time.Duration) (int64, error) {
	key := s.key(otpKindAttempts, userID)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if ttl.Val() < 0 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, err
		}
	}
	return incr.Val(), nil
}

func (s *RedisOTPStore) ResetAttempts(ctx context.Context, userID string) error {
	return s.client.Del(ctx, s.key(otpKindAttempts, userID)).Err()
}

// MongoOTPStore is used when Redis is unavailable. Records carry an explicit
// expiresAt that reads check, and a TTL index eventually removes them.
type MongoOTPStore struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoOTPStore(db *mongo.Client) *MongoOTPStore {
	return &MongoOTPStore{
		collection: config.GetCollection(db, "withdrawal_otps"),
		now:        time.Now,
	}
}

func otpDocID(kind, id string) string {
	return kind + ":" + id
}

func (s *MongoOTPStore) put(ctx context.Context, kind, id, value string, ttl time.Duration) error {
	now := s.now()
	doc := models.WithdrawalOTP{
		Key:       otpDocID(kind, id),
		Kind:      kind,
		Value:     value,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": doc.Key}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoOTPStore) live(kind, id string) bson.M {
	return bson.M{"_id": otpDocID(kind, id), "expiresAt": bson.M{"$gt": s.now()}}
}

func (s *MongoOTPStore) SaveCode(ctx context.Context, email, codeHash string, ttl time.Duration) error {
	return s.put(ctx, otpKindCode, email, codeHash, ttl)
}

func (s *MongoOTPStore) GetCode(ctx context.Context, email string) (string, error) {
	var doc models.WithdrawalOTP
	err := s.collection.FindOne(ctx, s.live(otpKindCode, email)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", ErrOTPNotFound
	}
	if err != nil {
		return "", err
	}
	return doc.Value, nil
}

func (s *MongoOTPStore) DeleteCode(ctx context.Context, email string) (bool, error) {
	res, err := s.collection.DeleteOne(ctx, s.live(otpKindCode, email))
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoOTPStore) SetVerified(ctx context.Context, userID string, ttl time.Duration) error {
	return s.put(ctx, otpKindVerified, userID, "1", ttl)
}

func (s *MongoOTPStore) ConsumeVerified(ctx context.Context, userID string) (bool, error) {
	err := s.collection.FindOneAndDelete(ctx, s.live(otpKindVerified, userID)).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *MongoOTPStore) IncrAttempts(ctx context.Context, userID string, window time.Duration) (int64, error) {
	now := s.now()
	id := otpDocID(otpKindAttempts, userID)

	// drop an expired window the TTL monitor has not removed yet
	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": id, "expiresAt": bson.M{"$lte": now}}); err != nil {
		return 0, err
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	update := bson.M{
		"$inc": bson.M{"attempts": 1},
		"$setOnInsert": bson.M{
			"kind":      otpKindAttempts,
			"expiresAt": now.Add(window),
			"createdAt": now,
		},
	}

	var doc models.WithdrawalOTP
	if err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc); err != nil {
		return 0, err
	}
	return doc.Attempts, nil
}

func (s *MongoOTPStore) ResetAttempts(ctx context.Context, userID string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": otpDocID(otpKindAttempts, userID)})
	return err
}
