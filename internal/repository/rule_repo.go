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

// RuleRepo handles combination rules and per-question priority weights
type RuleRepo interface {
	// GetActive returns the active rule of a business, nil when none is configured
	GetActive(ctx context.Context, businessID string) (*model.CombinationRule, error)
	// Upsert replaces the active rule and bumps its version, which invalidates
	// every cached combination derived from the previous one.
	Upsert(ctx context.Context, rule *model.CombinationRule) error

	GetWeights(ctx context.Context, businessID string) ([]*model.PriorityWeight, error)
	SaveWeight(ctx context.Context, weight *model.PriorityWeight) error
}

type ruleRepo struct {
	rules   *mongo.Collection
	weights *mongo.Collection
}

// NewRuleRepo creates a new rule repository
func NewRuleRepo(db *mongo.Database) RuleRepo {
	return &ruleRepo{
		rules:   db.Collection("combination_rules"),
		weights: db.Collection("priority_weights"),
	}
}

func (r *ruleRepo) GetActive(ctx context.Context, businessID string) (*model.CombinationRule, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})
	var rule model.CombinationRule
	err := r.rules.FindOne(ctx, bson.M{"businessContextId": businessID, "active": true}, opts).Decode(&rule)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *ruleRepo) Upsert(ctx context.Context, rule *model.CombinationRule) error {
	current, err := r.GetActive(ctx, rule.BusinessContextID)
	if err != nil {
		return err
	}
	rule.Version = 1
	if current != nil {
		rule.ID = current.ID
		rule.Version = current.Version + 1
	}
	if rule.ID == "" {
		rule.ID = primitive.NewObjectID().Hex()
	}
	rule.Active = true
	rule.UpdatedAt = time.Now().UTC()

	opts := options.Replace().SetUpsert(true)
	_, err = r.rules.ReplaceOne(ctx, bson.M{"_id": rule.ID}, rule, opts)
	return err
}

func (r *ruleRepo) GetWeights(ctx context.Context, businessID string) ([]*model.PriorityWeight, error) {
	cursor, err := r.weights.Find(ctx, bson.M{"businessContextId": businessID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var weights []*model.PriorityWeight
	if err = cursor.All(ctx, &weights); err != nil {
		return nil, err
	}
	return weights, nil
}

func (r *ruleRepo) SaveWeight(ctx context.Context, weight *model.PriorityWeight) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.weights.ReplaceOne(ctx,
		bson.M{"businessContextId": weight.BusinessContextID, "questionId": weight.QuestionID},
		weight,
		opts,
	)
	return err
}
