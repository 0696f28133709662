package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"voicefeedback/internal/model"
)

// ActivationRepo stores the audit trail of every evaluation
type ActivationRepo interface {
	InsertMany(ctx context.Context, entries []*model.ActivationLogEntry) error
	// MarkAsked flags selected entries of an evaluation as asked and returns how many changed
	MarkAsked(ctx context.Context, evaluationID string, questionIDs []string, at time.Time) (int64, error)
	GetByEvaluation(ctx context.Context, evaluationID string) ([]*model.ActivationLogEntry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type activationRepo struct {
	collection *mongo.Collection
}

// NewActivationRepo creates a new activation log repository
func NewActivationRepo(db *mongo.Database) ActivationRepo {
	return &activationRepo{
		collection: db.Collection("question_activation_logs"),
	}
}

func (r *activationRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "evaluationId", Value: 1}, {Key: "questionId", Value: 1}}},
		{Keys: bson.D{{Key: "businessContextId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: 1}}},
	})
	return err
}

func (r *activationRepo) InsertMany(ctx context.Context, entries []*model.ActivationLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]interface{}, len(entries))
	for i, e := range entries {
		if e.ID == "" {
			e.ID = primitive.NewObjectID().Hex()
		}
		docs[i] = e
	}
	_, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return err
}

func (r *activationRepo) MarkAsked(ctx context.Context, evaluationID string, questionIDs []string, at time.Time) (int64, error) {
	filter := bson.M{
		"evaluationId": evaluationID,
		"wasSelected":  true,
		"questionId":   bson.M{"$in": questionIDs},
	}
	update := bson.M{"$set": bson.M{"wasAsked": true, "askedAt": at}}
	res, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *activationRepo) GetByEvaluation(ctx context.Context, evaluationID string) ([]*model.ActivationLogEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "wasSelected", Value: -1}, {Key: "callPosition", Value: 1}, {Key: "questionId", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"evaluationId": evaluationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []*model.ActivationLogEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *activationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"createdAt": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
