package feedback

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/haneul-lab/essay-feedback-api/internal/models"
	"github.com/haneul-lab/essay-feedback-api/pkg/config"
)

// standardFile mirrors the published curriculum dataset layout.
type standardFile struct {
	SourceDataInfo struct {
		AchievementStandard2015 []string `json:"2015_achievement_standard"`
	} `json:"source_data_info"`
	LearningDataInfo struct {
		TextTitle       string `json:"text_title"`
		TextDescription string `json:"text_description"`
	} `json:"learning_data_info"`
}

// LoadLessonContext reads the achievement-standard dataset referenced by the
// config and builds the lesson context stamped onto every record.
func LoadLessonContext(cfg config.LessonConfig) (models.LessonContext, error) {
	lesson := models.LessonContext{
		LessonID: cfg.LessonID,
		Grade:    cfg.Grade,
		Semester: cfg.Semester,
		Subject:  cfg.Subject,
		Language: cfg.Language,
	}

	raw, err := os.ReadFile(cfg.StandardPath)
	if err != nil {
		return lesson, fmt.Errorf("read achievement standard %s: %w", cfg.StandardPath, err)
	}

	var file standardFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return lesson, fmt.Errorf("parse achievement standard %s: %w", cfg.StandardPath, err)
	}

	lesson.AchievementStandards = file.SourceDataInfo.AchievementStandard2015
	lesson.TextTitle = file.LearningDataInfo.TextTitle
	lesson.TextDescription = file.LearningDataInfo.TextDescription
	if lesson.TextTitle == "" {
		lesson.TextTitle = lesson.TextDescription
	}
	return lesson, nil
}

// JoinedStandards flattens the standard list for prompt interpolation.
func JoinedStandards(lesson models.LessonContext) string {
	return strings.Join(lesson.AchievementStandards, " ")
}
