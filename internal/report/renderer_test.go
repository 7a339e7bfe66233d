package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haneul-lab/essay-feedback-api/internal/models"
)

func TestRenderProducesPDF(t *testing.T) {
	renderer := NewPDFRenderer("")
	record := models.EssayRecord{
		ProcessID:    "proc_20260823_100000_abc123",
		EssayID:      "ESSAY_abcd1234",
		StudentEssay: "I listened to my friend even though we disagreed.",
		CreatedAt:    time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC),
		Evaluation: &models.Evaluation{
			Vocabulary: models.Dimension{Scale: 5, Value: 4},
			Grammar:    models.Dimension{Scale: 5, Value: 3},
			Logic:      models.Dimension{Scale: 5, Value: 4},
			Empathy:    models.Dimension{Scale: 5, Value: 5},
		},
		Teacher: &models.TeacherCorrection{FinalFeedback: "Well done. Keep listening closely."},
	}

	data, err := renderer.Render(record)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestFinalFeedbackFallback(t *testing.T) {
	record := models.EssayRecord{
		AIFeedback: &models.AIFeedback{DraftFeedback: "draft critique"},
	}
	assert.Equal(t, "draft critique", finalFeedback(record))

	record.AIFeedback.FinalFeedback = "approved critique"
	assert.Equal(t, "approved critique", finalFeedback(record))

	record.Teacher = &models.TeacherCorrection{FinalFeedback: "teacher override"}
	assert.Equal(t, "teacher override", finalFeedback(record))
}
