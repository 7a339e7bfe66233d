package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/haneul-lab/essay-feedback-api/internal/models"
	"github.com/haneul-lab/essay-feedback-api/pkg/config"
)

const promptTemplateID = "empathetic_feedback_v3"

var defaultTags = []string{"공감", "경청", "존중", "긍정 강화", "성취기준 기반 조언", "심화 질문"}

// OpenAIGenerator implements Generator using the official openai-go SDK
// (chat completions).
type OpenAIGenerator struct {
	model       string
	temperature float64
	maxTokens   int
	opts        []option.RequestOption
}

// NewOpenAIGenerator validates config and builds the generator.
func NewOpenAIGenerator(cfg config.OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; provide OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &OpenAIGenerator{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		opts:        opts,
	}, nil
}

// generatorReply is the JSON object the model is instructed to return.
type generatorReply struct {
	Feedback               string      `json:"feedback"`
	AchievementExplanation string      `json:"achievement_explanation"`
	RevisedText            string      `json:"revised_text"`
	Scores                 DraftScores `json:"scores"`
}

// Generate asks the model for a three-part critique, rubric scores, and a
// revised version of the student text.
func (g *OpenAIGenerator) Generate(ctx context.Context, studentText string, lesson models.LessonContext) (*Draft, error) {
	client := openai.NewClient(g.opts...)

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(lesson)),
			openai.UserMessage(userPrompt(studentText, lesson)),
		},
	}
	if g.temperature > 0 {
		params.Temperature = openai.Float(g.temperature)
	}
	if g.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(g.maxTokens))
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: empty choices")
	}

	reply, err := parseReply(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	return &Draft{
		Feedback:               reply.Feedback,
		AchievementExplanation: reply.AchievementExplanation,
		RevisedText:            reply.RevisedText,
		Scores:                 clampScores(reply.Scores),
		ModelName:              g.model,
		PromptTemplateID:       promptTemplateID,
		Tags:                   defaultTags,
	}, nil
}

func parseReply(content string) (*generatorReply, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var reply generatorReply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return nil, fmt.Errorf("parse generator reply: %w", err)
	}
	if strings.TrimSpace(reply.Feedback) == "" {
		return nil, errors.New("generator reply missing feedback")
	}
	reply.Feedback = strings.TrimSpace(reply.Feedback)
	reply.AchievementExplanation = strings.TrimSpace(reply.AchievementExplanation)
	reply.RevisedText = strings.TrimSpace(reply.RevisedText)
	return &reply, nil
}

func clampScores(s DraftScores) DraftScores {
	s.Vocabulary = clampScore(s.Vocabulary)
	s.Grammar = clampScore(s.Grammar)
	s.Logic = clampScore(s.Logic)
	s.Empathy = clampScore(s.Empathy)
	return s
}

func clampScore(v int) int {
	if v < 1 {
		return 3
	}
	if v > 5 {
		return 5
	}
	return v
}

func systemPrompt(lesson models.LessonContext) string {
	var b strings.Builder
	b.WriteString("당신은 초등학교 국어 수업을 돕는 전문적인 AI 보조교사입니다. ")
	b.WriteString("다음 성취 기준을 정확히 이해하고 학생 글을 평가하세요.\n\n")
	b.WriteString("- 성취 기준: ")
	b.WriteString(JoinedStandards(lesson))
	b.WriteString("\n\n출력은 반드시 아래 JSON 형식의 한 개 객체로만 답하세요.\n")
	b.WriteString(`{
  "feedback": "3단 구성 피드백 (각 문단 최소 2문장, 전체 6문장 이상): ① 따뜻한 공감과 격려 ② 성취기준 기반의 구체적인 어휘/문법 조언 ③ 아이의 생각을 넓혀주는 심화 질문",
  "achievement_explanation": "성취기준을 인용하며 왜 이런 피드백이 나왔는지 교사가 납득할 수 있는 상세한 근거 설명",
  "revised_text": "학생 원문을 더 매끄럽고 수준 높게 다듬은 AI 추천 수정본 (전체 텍스트)",
  "scores": {"vocabulary": 1-5, "grammar": 1-5, "logic": 1-5, "empathy": 1-5}
}`)
	return b.String()
}

func userPrompt(studentText string, lesson models.LessonContext) string {
	var b strings.Builder
	b.WriteString("지문의 주제와 성취 기준을 참고하여 학생 글을 평가하세요.\n\n")
	b.WriteString("지문 설명: ")
	b.WriteString(lesson.TextDescription)
	b.WriteString("\n\n학생 글:\n\"\"\"\n")
	b.WriteString(studentText)
	b.WriteString("\n\"\"\"\n\n")
	b.WriteString("요구사항:\n")
	b.WriteString("1. feedback은 반드시 3단 구성으로 작성 (각 문단 최소 2문장, 전체 6문장 이상)\n")
	b.WriteString("2. achievement_explanation은 성취기준을 명시적으로 인용하며 상세히 설명\n")
	b.WriteString("3. revised_text는 학생 원문의 의미를 유지하면서 더 매끄럽고 수준 높게 다듬은 전체 텍스트\n")
	return b.String()
}
