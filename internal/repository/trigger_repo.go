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

// TriggerRepo handles MongoDB operations for dynamic triggers
type TriggerRepo interface {
	Create(ctx context.Context, trigger *model.DynamicTrigger) error
	Update(ctx context.Context, trigger *model.DynamicTrigger) error
	GetActiveByBusiness(ctx context.Context, businessID string) ([]*model.DynamicTrigger, error)
}

type triggerRepo struct {
	collection *mongo.Collection
}

// NewTriggerRepo creates a new trigger repository
func NewTriggerRepo(db *mongo.Database) TriggerRepo {
	return &triggerRepo{
		collection: db.Collection("dynamic_triggers"),
	}
}

func (r *triggerRepo) Create(ctx context.Context, trigger *model.DynamicTrigger) error {
	if trigger.ID == "" {
		trigger.ID = primitive.NewObjectID().Hex()
	}
	trigger.UpdatedAt = time.Now().UTC()
	_, err := r.collection.InsertOne(ctx, trigger)
	return err
}

// Update replaces the trigger, inserting it when the id is new
func (r *triggerRepo) Update(ctx context.Context, trigger *model.DynamicTrigger) error {
	trigger.UpdatedAt = time.Now().UTC()
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": trigger.ID}, trigger, options.Replace().SetUpsert(true))
	return err
}

func (r *triggerRepo) GetActiveByBusiness(ctx context.Context, businessID string) ([]*model.DynamicTrigger, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"businessContextId": businessID, "active": true}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var triggers []*model.DynamicTrigger
	if err = cursor.All(ctx, &triggers); err != nil {
		return nil, err
	}
	return triggers, nil
}
