package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"voicefeedback/internal/model"
)

func TestQuestionRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("active questions decode in id order", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "voicefeedback.questions", mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: "q-checkout"},
				{Key: "businessContextId", Value: "biz-1"},
				{Key: "topicCategory", Value: "checkout"},
				{Key: "estimatedDurationSeconds", Value: 30},
				{Key: "basePriorityLevel", Value: 5},
				{Key: "frequencyWindow", Value: "daily"},
				{Key: "active", Value: true},
			},
			bson.D{
				{Key: "_id", Value: "q-staff"},
				{Key: "businessContextId", Value: "biz-1"},
				{Key: "topicCategory", Value: "staff"},
				{Key: "estimatedDurationSeconds", Value: 25},
				{Key: "basePriorityLevel", Value: 4},
				{Key: "active", Value: true},
			},
		))

		questions, err := NewQuestionRepo(mt.DB).GetActiveByBusiness(context.Background(), "biz-1", "store-9")
		require.NoError(mt, err)
		require.Len(mt, questions, 2)
		assert.Equal(mt, "q-checkout", questions[0].ID)
		assert.Equal(mt, 30, questions[0].EstimatedDurationSec)
		assert.Equal(mt, model.FrequencyDaily, questions[0].FrequencyWindow)
		assert.Equal(mt, 4, questions[1].BasePriorityLevel)
	})

	mt.Run("missing question is nil without error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "voicefeedback.questions", mtest.FirstBatch))

		q, err := NewQuestionRepo(mt.DB).GetByID(context.Background(), "nope")
		require.NoError(mt, err)
		assert.Nil(mt, q)
	})

	mt.Run("command errors surface", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 11600, Message: "interrupted at shutdown"}))

		_, err := NewQuestionRepo(mt.DB).GetActiveByBusiness(context.Background(), "biz-1", "")
		assert.Error(mt, err)
	})
}

func TestRuleRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("no rule configured", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "voicefeedback.combination_rules", mtest.FirstBatch))

		rule, err := NewRuleRepo(mt.DB).GetActive(context.Background(), "biz-1")
		require.NoError(mt, err)
		assert.Nil(mt, rule)
	})

	mt.Run("upsert bumps the version", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "voicefeedback.combination_rules", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: "rule-1"},
				{Key: "businessContextId", Value: "biz-1"},
				{Key: "version", Value: 3},
				{Key: "active", Value: true},
			}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		rule := &model.CombinationRule{BusinessContextID: "biz-1", MaxCallDurationSeconds: 90}
		require.NoError(mt, NewRuleRepo(mt.DB).Upsert(context.Background(), rule))
		assert.Equal(mt, "rule-1", rule.ID)
		assert.Equal(mt, 4, rule.Version)
		assert.True(mt, rule.Active)
	})
}

func TestActivationRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("insert assigns ids", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		entries := []*model.ActivationLogEntry{
			{EvaluationID: "ev-1", QuestionID: "q-1", WasSelected: true, CallPosition: 1},
			{EvaluationID: "ev-1", QuestionID: "q-2", SkipReason: model.SkipTimeConstraint},
		}
		require.NoError(mt, NewActivationRepo(mt.DB).InsertMany(context.Background(), entries))
		assert.NotEmpty(mt, entries[0].ID)
		assert.NotEqual(mt, entries[0].ID, entries[1].ID)
	})

	mt.Run("empty insert skips the round trip", func(mt *mtest.T) {
		assert.NoError(mt, NewActivationRepo(mt.DB).InsertMany(context.Background(), nil))
	})

	mt.Run("mark asked reports modified count", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}, bson.E{Key: "nModified", Value: 2}))

		n, err := NewActivationRepo(mt.DB).MarkAsked(context.Background(), "ev-1", []string{"q-1", "q-3"}, time.Now())
		require.NoError(mt, err)
		assert.Equal(mt, int64(2), n)
	})

	mt.Run("retention delete reports deleted count", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 7}))

		n, err := NewActivationRepo(mt.DB).DeleteOlderThan(context.Background(), time.Now().AddDate(0, 0, -90))
		require.NoError(mt, err)
		assert.Equal(mt, int64(7), n)
	})
}
