package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/haneul-lab/essay-feedback-api/internal/feedback"
	"github.com/haneul-lab/essay-feedback-api/internal/models"
	"github.com/haneul-lab/essay-feedback-api/pkg/jobs"
)

// DraftWorker handles queued drafting jobs: it calls the feedback generator
// and advances the record to ai_drafted. A generator failure is recorded on
// the record and never retried; only store failures are returned to the queue.
type DraftWorker struct {
	store     EssayStore
	generator feedback.Generator
	metrics   *MetricsService
	cache     *CacheService
	logger    *zap.Logger
}

// NewDraftWorker constructs the worker.
func NewDraftWorker(store EssayStore, generator feedback.Generator, metrics *MetricsService, cache *CacheService, logger *zap.Logger) *DraftWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DraftWorker{store: store, generator: generator, metrics: metrics, cache: cache, logger: logger}
}

// Handle processes one drafting job.
func (w *DraftWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.store.GetByProcessID(ctx, job.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			w.logger.Warn("draft job for unknown record", zap.String("process_id", job.ID))
			return nil
		}
		return fmt.Errorf("load record for drafting: %w", err)
	}

	// A record that already moved past received keeps its existing draft.
	if record.Status != models.StatusReceived {
		return nil
	}

	lesson := models.LessonContext{}
	if record.LessonContext != nil {
		lesson = *record.LessonContext
	}

	start := time.Now()
	draft, genErr := w.generator.Generate(ctx, record.StudentEssay, lesson)
	w.metrics.ObserveDraftGeneration(genErr == nil, time.Since(start))

	if genErr != nil {
		w.logger.Error("draft generation failed",
			zap.String("process_id", job.ID), zap.Error(genErr))
		w.recordFailure(ctx, job.ID, genErr)
		return nil
	}

	if _, err := w.store.UpdateByProcessID(ctx, job.ID, func(rec *models.EssayRecord) error {
		if rec.Status != models.StatusReceived || rec.AIFeedback != nil {
			return errNoChange
		}
		now := time.Now().UTC()
		rec.Evaluation = evaluationFromScores(draft.Scores)
		rec.AIFeedback = &models.AIFeedback{
			ModelName:              draft.ModelName,
			CreatedAt:              now,
			PromptTemplateID:       draft.PromptTemplateID,
			DraftFeedback:          draft.Feedback,
			AchievementExplanation: draft.AchievementExplanation,
			RevisedText:            draft.RevisedText,
			Tags:                   draft.Tags,
		}
		rec.ErrorMessage = nil
		rec.Status = models.StatusAIDrafted
		return nil
	}); err != nil {
		if errors.Is(err, errNoChange) {
			return nil
		}
		return fmt.Errorf("store draft: %w", err)
	}

	if err := w.cache.Invalidate(ctx, essayCachePattern); err != nil {
		w.logger.Warn("failed to invalidate listing cache", zap.Error(err))
	}

	w.logger.Info("draft stored", zap.String("process_id", job.ID))
	return nil
}

func (w *DraftWorker) recordFailure(ctx context.Context, processID string, genErr error) {
	msg := genErr.Error()
	if _, err := w.store.UpdateByProcessID(ctx, processID, func(rec *models.EssayRecord) error {
		if rec.Status != models.StatusReceived {
			return errNoChange
		}
		rec.ErrorMessage = &msg
		return nil
	}); err != nil && !errors.Is(err, errNoChange) {
		w.logger.Error("failed to record draft error",
			zap.String("process_id", processID), zap.Error(err))
	}
}

func evaluationFromScores(scores feedback.DraftScores) *models.Evaluation {
	dim := func(v int) models.Dimension {
		return models.Dimension{Scale: 5, Value: v}
	}
	return &models.Evaluation{
		Vocabulary: dim(scores.Vocabulary),
		Grammar:    dim(scores.Grammar),
		Logic:      dim(scores.Logic),
		Empathy:    dim(scores.Empathy),
	}
}
