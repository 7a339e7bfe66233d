package feedback

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haneul-lab/essay-feedback-api/pkg/config"
)

func TestParseReply(t *testing.T) {
	content := "```json\n{\"feedback\": \"참 잘했어요. 생각이 잘 드러납니다.\", \"achievement_explanation\": \"성취기준 근거\", \"revised_text\": \"다듬은 글\", \"scores\": {\"vocabulary\": 4, \"grammar\": 3, \"logic\": 5, \"empathy\": 4}}\n```"
	reply, err := parseReply(content)
	require.NoError(t, err)
	assert.Equal(t, "참 잘했어요. 생각이 잘 드러납니다.", reply.Feedback)
	assert.Equal(t, 4, reply.Scores.Vocabulary)
	assert.Equal(t, 5, reply.Scores.Logic)
}

func TestParseReplyRejectsMissingFeedback(t *testing.T) {
	_, err := parseReply(`{"achievement_explanation": "x"}`)
	require.Error(t, err)
}

func TestParseReplyRejectsNonJSON(t *testing.T) {
	_, err := parseReply("죄송합니다. JSON으로 답할 수 없습니다.")
	require.Error(t, err)
}

func TestClampScores(t *testing.T) {
	scores := clampScores(DraftScores{Vocabulary: 0, Grammar: 9, Logic: 3, Empathy: -1})
	assert.Equal(t, 3, scores.Vocabulary)
	assert.Equal(t, 5, scores.Grammar)
	assert.Equal(t, 3, scores.Logic)
	assert.Equal(t, 3, scores.Empathy)
}

func TestNewOpenAIGeneratorRequiresKey(t *testing.T) {
	_, err := NewOpenAIGenerator(config.OpenAIConfig{Model: "gpt-4o-mini"})
	require.Error(t, err)
}

func TestLoadLessonContext(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "standard.json")
	payload := `{
  "source_data_info": {"2015_achievement_standard": ["[6국01-07] 상대가 처한 상황을 이해하고 공감하며 듣는 태도를 지닌다."]},
  "learning_data_info": {"text_description": "생각이 다른 사람과의 대화"}
}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	lesson, err := LoadLessonContext(config.LessonConfig{
		StandardPath: path,
		LessonID:     "S1_TXT_012230",
		Grade:        "elementary-5",
		Language:     "ko",
	})
	require.NoError(t, err)
	assert.Len(t, lesson.AchievementStandards, 1)
	assert.Equal(t, "생각이 다른 사람과의 대화", lesson.TextDescription)
	assert.Equal(t, "생각이 다른 사람과의 대화", lesson.TextTitle)
	assert.Equal(t, "S1_TXT_012230", lesson.LessonID)
}

func TestLoadLessonContextMissingFile(t *testing.T) {
	_, err := LoadLessonContext(config.LessonConfig{StandardPath: "/nonexistent/standard.json"})
	require.Error(t, err)
}
