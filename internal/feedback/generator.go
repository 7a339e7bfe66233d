package feedback

import (
	"context"

	"github.com/haneul-lab/essay-feedback-api/internal/models"
)

// DraftScores carries the 1-5 rubric values returned by the generator.
type DraftScores struct {
	Vocabulary int `json:"vocabulary"`
	Grammar    int `json:"grammar"`
	Logic      int `json:"logic"`
	Empathy    int `json:"empathy"`
}

// Draft is the structured critique produced for one essay.
type Draft struct {
	Feedback               string
	AchievementExplanation string
	RevisedText            string
	Scores                 DraftScores
	ModelName              string
	PromptTemplateID       string
	Tags                   []string
}

// Generator produces a draft critique for submitted text. Implementations may
// fail or time out; callers are responsible for recording the failure.
type Generator interface {
	Generate(ctx context.Context, studentText string, lesson models.LessonContext) (*Draft, error)
}
