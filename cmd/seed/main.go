package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"voicefeedback/internal/config"
	"voicefeedback/internal/model"
	"voicefeedback/internal/platform/logger"
	"voicefeedback/internal/repository"
)

func main() {
	businessID := flag.String("business", "demo-grocer", "business context id to seed")
	flag.Parse()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("failed to connect to MongoDB", "error", err)
	}
	defer client.Disconnect(ctx)

	db := client.Database(cfg.MongoDatabase)
	questions := repository.NewQuestionRepo(db)
	triggers := repository.NewTriggerRepo(db)
	rules := repository.NewRuleRepo(db)

	for _, q := range demoQuestions(*businessID) {
		existing, err := questions.GetByID(ctx, q.ID)
		if err != nil {
			log.Fatal("lookup question failed", "questionId", q.ID, "error", err)
		}
		if existing != nil {
			q.CreatedAt = existing.CreatedAt
			err = questions.Update(ctx, q)
		} else {
			err = questions.Create(ctx, q)
		}
		if err != nil {
			log.Fatal("save question failed", "questionId", q.ID, "error", err)
		}
	}

	for _, t := range demoTriggers(*businessID) {
		if err := triggers.Update(ctx, t); err != nil {
			log.Fatal("save trigger failed", "triggerId", t.ID, "error", err)
		}
	}

	rule := &model.CombinationRule{
		BusinessContextID:      *businessID,
		MaxCallDurationSeconds: 120,
		Thresholds:             model.DefaultThresholds(),
		TargetQuestionCount:    5,
		TriggerBoostFactor:     1.0,
		Timezone:               "UTC",
	}
	if err := rules.Upsert(ctx, rule); err != nil {
		log.Fatal("save combination rule failed", "error", err)
	}

	// staff feedback matters more for this business
	if err := rules.SaveWeight(ctx, &model.PriorityWeight{
		BusinessContextID: *businessID,
		QuestionID:        *businessID + "-staff",
		WeightMultiplier:  1.2,
	}); err != nil {
		log.Fatal("save priority weight failed", "error", err)
	}

	log.Info("seeded business", "businessId", *businessID, "ruleVersion", rule.Version)
}

func demoQuestions(businessID string) []*model.Question {
	q := func(suffix, topic, text string, cost, level, target int) *model.Question {
		return &model.Question{
			ID:                   businessID + "-" + suffix,
			BusinessContextID:    businessID,
			Text:                 text,
			TopicCategory:        topic,
			EstimatedDurationSec: cost,
			BasePriorityLevel:    level,
			FrequencyTarget:      target,
			FrequencyWindow:      model.FrequencyDaily,
			Active:               true,
		}
	}
	fresh := q("fresh", "produce", "How fresh was the produce you bought today?", 20, 3, 0)
	fresh.RequiresTrigger = true

	return []*model.Question{
		q("checkout", "checkout", "How quick was checkout today?", 30, 5, 50),
		q("staff", "staff", "Was our staff helpful?", 25, 4, 50),
		q("cleanliness", "store", "How clean was the store?", 30, 3, 30),
		q("parking", "parking", "Was it easy to find parking?", 25, 2, 20),
		q("recommend", "loyalty", "How likely are you to recommend us to a friend?", 45, 2, 0),
		fresh,
	}
}

func demoTriggers(businessID string) []*model.DynamicTrigger {
	return []*model.DynamicTrigger{
		{
			ID:                   businessID + "-produce",
			BusinessContextID:    businessID,
			Name:                 "Produce purchase",
			Type:                 model.TriggerPurchaseBased,
			Config:               map[string]interface{}{"categories": []interface{}{"produce"}},
			SensitivityThreshold: 10,
			EffectivenessScore:   0.6,
			QuestionIDs:          []string{businessID + "-fresh"},
			Active:               true,
		},
		{
			ID:                 businessID + "-big-basket",
			BusinessContextID:  businessID,
			Name:               "Large basket",
			Type:               model.TriggerAmountBased,
			Config:             map[string]interface{}{"min": 100.0},
			EffectivenessScore: 0.4,
			QuestionIDs:        []string{businessID + "-recommend"},
			Active:             true,
		},
	}
}
