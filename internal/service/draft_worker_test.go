package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/haneul-lab/essay-feedback-api/internal/feedback"
	"github.com/haneul-lab/essay-feedback-api/internal/models"
	"github.com/haneul-lab/essay-feedback-api/pkg/jobs"
)

type stubGenerator struct {
	mu    sync.Mutex
	draft *feedback.Draft
	err   error
	calls int
}

func (g *stubGenerator) Generate(ctx context.Context, studentText string, lesson models.LessonContext) (*feedback.Draft, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return g.draft, nil
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func sampleDraft() *feedback.Draft {
	return &feedback.Draft{
		Feedback:               "생각을 솔직하게 표현했어요. 친구의 입장을 헤아린 점이 돋보입니다.",
		AchievementExplanation: "[6국01-07] 공감하며 듣는 태도를 보여 주었습니다.",
		RevisedText:            "나는 친구와 생각이 달랐지만 먼저 이야기를 끝까지 들어 보았다.",
		Scores:                 feedback.DraftScores{Vocabulary: 4, Grammar: 3, Logic: 4, Empathy: 5},
		ModelName:              "gpt-4o-mini",
		PromptTemplateID:       "empathetic_feedback_v3",
		Tags:                   []string{"공감", "경청"},
	}
}

func TestDraftWorkerStoresDraft(t *testing.T) {
	store := newStubEssayStore()
	store.put(models.EssayRecord{
		ProcessID:     "proc_w1",
		Status:        models.StatusReceived,
		StudentEssay:  "나는 친구와 생각이 달랐다.",
		LessonContext: &models.LessonContext{TextDescription: "생각이 다른 사람과의 대화"},
	})
	generator := &stubGenerator{draft: sampleDraft()}
	worker := NewDraftWorker(store, generator, nil, nil, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "proc_w1", Type: DraftJobType})
	require.NoError(t, err)
	assert.Equal(t, 1, generator.callCount())

	record := store.get("proc_w1")
	assert.Equal(t, models.StatusAIDrafted, record.Status)
	assert.Equal(t, models.StepAIDrafted, record.CurrentStep)
	require.NotNil(t, record.AIFeedback)
	assert.Equal(t, "gpt-4o-mini", record.AIFeedback.ModelName)
	assert.Equal(t, "empathetic_feedback_v3", record.AIFeedback.PromptTemplateID)
	assert.NotEmpty(t, record.AIFeedback.DraftFeedback)
	require.NotNil(t, record.Evaluation)
	assert.Equal(t, 5, record.Evaluation.Empathy.Value)
	assert.Equal(t, 5, record.Evaluation.Empathy.Scale)
	assert.Nil(t, record.ErrorMessage)
}

func TestDraftWorkerRecordsGeneratorFailure(t *testing.T) {
	store := newStubEssayStore()
	store.put(models.EssayRecord{ProcessID: "proc_w2", Status: models.StatusReceived, StudentEssay: "글"})
	generator := &stubGenerator{err: errors.New("openai chat completion: timeout")}
	worker := NewDraftWorker(store, generator, nil, nil, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "proc_w2", Type: DraftJobType})
	require.NoError(t, err)

	record := store.get("proc_w2")
	assert.Equal(t, models.StatusReceived, record.Status)
	require.NotNil(t, record.ErrorMessage)
	assert.Contains(t, *record.ErrorMessage, "timeout")
	assert.Nil(t, record.AIFeedback)
}

func TestDraftWorkerSkipsAlreadyDraftedRecord(t *testing.T) {
	store := newStubEssayStore()
	store.put(draftedRecord("proc_w3"))
	generator := &stubGenerator{draft: sampleDraft()}
	worker := NewDraftWorker(store, generator, nil, nil, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "proc_w3", Type: DraftJobType})
	require.NoError(t, err)
	assert.Equal(t, 0, generator.callCount())

	record := store.get("proc_w3")
	assert.Equal(t, "참 잘했어요. 생각이 잘 드러납니다.", record.AIFeedback.DraftFeedback)
}

func TestDraftWorkerIgnoresUnknownRecord(t *testing.T) {
	generator := &stubGenerator{draft: sampleDraft()}
	worker := NewDraftWorker(newStubEssayStore(), generator, nil, nil, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "proc_missing", Type: DraftJobType})
	require.NoError(t, err)
	assert.Equal(t, 0, generator.callCount())
}
