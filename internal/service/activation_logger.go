package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"voicefeedback/internal/model"
	"voicefeedback/internal/platform/logger"
	"voicefeedback/internal/repository"
)

const activationWriteTimeout = 5 * time.Second

type activationBatch struct {
	businessID   string
	evaluationID string
	entries      []*model.ActivationLogEntry
}

// ActivationLogger records which questions were selected or skipped for
// every committed evaluation. Writes go through a bounded queue drained by a
// background worker; when the queue is full, or the worker is not running,
// the write happens inline.
type ActivationLogger struct {
	repo        repository.ActivationRepo
	log         *logger.Logger
	broadcaster Broadcaster
	now         func() time.Time

	mu      sync.RWMutex
	queue   chan activationBatch
	running bool
	wg      sync.WaitGroup
}

// NewActivationLogger creates an activation logger with a queue of queueSize batches
func NewActivationLogger(repo repository.ActivationRepo, log *logger.Logger, queueSize int) *ActivationLogger {
	if queueSize < 1 {
		queueSize = 1
	}
	return &ActivationLogger{
		repo:  repo,
		log:   log,
		now:   time.Now,
		queue: make(chan activationBatch, queueSize),
	}
}

// SetBroadcaster sets the live feed publisher
func (l *ActivationLogger) SetBroadcaster(b Broadcaster) {
	l.broadcaster = b
}

// Start launches the queue worker. It stops when Close is called.
func (l *ActivationLogger) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for batch := range l.queue {
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), activationWriteTimeout)
			if err := l.write(wctx, batch); err != nil {
				l.log.Error("activation log write failed",
					"evaluationId", batch.evaluationID, "entries", len(batch.entries), "error", err)
			}
			cancel()
		}
	}()
}

// Close drains the queue and waits for the worker
func (l *ActivationLogger) Close() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.queue)
	l.mu.Unlock()
	l.wg.Wait()
}

// Record logs one entry per considered candidate of result
func (l *ActivationLogger) Record(ctx context.Context, result *model.SelectionResult, customerSequence int64) error {
	batch := activationBatch{
		businessID:   result.BusinessContextID,
		evaluationID: result.EvaluationID,
		entries:      BuildEntries(result, customerSequence, l.now().UTC()),
	}
	if len(batch.entries) == 0 {
		return nil
	}

	l.mu.RLock()
	if l.running {
		select {
		case l.queue <- batch:
			l.mu.RUnlock()
			return nil
		default:
			l.log.Warn("activation queue full, writing inline", "evaluationId", batch.evaluationID)
		}
	}
	l.mu.RUnlock()
	return l.write(ctx, batch)
}

func (l *ActivationLogger) write(ctx context.Context, batch activationBatch) error {
	if err := l.repo.InsertMany(ctx, batch.entries); err != nil {
		return err
	}
	if l.broadcaster != nil {
		l.broadcaster.BroadcastToBusiness(batch.businessID, MsgActivationLogged, batch.entries)
	}
	return nil
}

// BuildEntries converts a result into activation log entries: selected
// questions in call order first, then the skipped ones.
func BuildEntries(result *model.SelectionResult, customerSequence int64, at time.Time) []*model.ActivationLogEntry {
	entries := make([]*model.ActivationLogEntry, 0, len(result.Selected)+len(result.Skipped))
	for _, s := range result.Selected {
		entries = append(entries, &model.ActivationLogEntry{
			EvaluationID:      result.EvaluationID,
			BusinessContextID: result.BusinessContextID,
			QuestionID:        s.QuestionID,
			TopicCategory:     s.TopicCategory,
			TriggerID:         s.TriggerID,
			TriggerConfidence: s.TriggerConfidence,
			EffectivePriority: s.EffectivePriority,
			CallPosition:      s.Position,
			WasSelected:       true,
			CustomerSequence:  customerSequence,
			CacheHit:          result.Metadata.CacheHit,
			CreatedAt:         at,
		})
	}
	for _, s := range result.Skipped {
		entries = append(entries, &model.ActivationLogEntry{
			EvaluationID:      result.EvaluationID,
			BusinessContextID: result.BusinessContextID,
			QuestionID:        s.QuestionID,
			TopicCategory:     s.TopicCategory,
			TriggerID:         s.TriggerID,
			TriggerConfidence: s.TriggerConfidence,
			EffectivePriority: s.EffectivePriority,
			SkipReason:        s.SkipReason,
			CustomerSequence:  customerSequence,
			CacheHit:          result.Metadata.CacheHit,
			CreatedAt:         at,
		})
	}
	return entries
}

// MarkAsked flags the given questions of an evaluation as actually asked
func (l *ActivationLogger) MarkAsked(ctx context.Context, evaluationID string, questionIDs []string) (int64, error) {
	if evaluationID == "" || len(questionIDs) == 0 {
		return 0, fmt.Errorf("%w: evaluation id and question ids are required", ErrInvalidRequest)
	}
	n, err := l.repo.MarkAsked(ctx, evaluationID, questionIDs, l.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: mark asked: %v", ErrDependencyUnavailable, err)
	}
	return n, nil
}

// ListByEvaluation returns the logged entries of one evaluation
func (l *ActivationLogger) ListByEvaluation(ctx context.Context, evaluationID string) ([]*model.ActivationLogEntry, error) {
	entries, err := l.repo.GetByEvaluation(ctx, evaluationID)
	if err != nil {
		return nil, fmt.Errorf("%w: list activations: %v", ErrDependencyUnavailable, err)
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return entries, nil
}
