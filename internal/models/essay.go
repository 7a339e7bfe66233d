package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ProcessStatus captures the essay lifecycle states. Transitions only move
// forward: received -> ai_drafted -> completed -> sent.
type ProcessStatus string

const (
	StatusReceived  ProcessStatus = "received"
	StatusAIDrafted ProcessStatus = "ai_drafted"
	StatusCompleted ProcessStatus = "completed"
	StatusSent      ProcessStatus = "sent"
)

// Step numbers mirror the teacher-facing progress indicator.
const (
	StepReceived  = 1
	StepAIDrafted = 3
	StepCompleted = 5
	StepSent      = 6
)

// ReportType selects the report recipient on send.
type ReportType string

const (
	ReportTypeStudent ReportType = "student"
	ReportTypeParent  ReportType = "parent"
)

// EssayRecord is the unit of persistence for one submission's full lifecycle.
type EssayRecord struct {
	ProcessID     string             `db:"process_id" json:"processId"`
	Status        ProcessStatus      `db:"status" json:"processStatus"`
	CurrentStep   int                `db:"current_step" json:"currentStep"`
	EssayID       string             `db:"essay_id" json:"essayId"`
	StudentEssay  string             `db:"student_essay" json:"studentEssay"`
	Prompt        string             `db:"prompt" json:"prompt,omitempty"`
	LessonContext *LessonContext     `db:"lesson_context" json:"lessonContext,omitempty"`
	Evaluation    *Evaluation        `db:"evaluation" json:"evaluation,omitempty"`
	AIFeedback    *AIFeedback        `db:"ai_feedback" json:"aiFeedback,omitempty"`
	Teacher       *TeacherCorrection `db:"teacher_correction" json:"teacherCorrection,omitempty"`
	LessonNote    *string            `db:"lesson_feedback" json:"lessonFeedback,omitempty"`
	Report        *ReportStatus      `db:"report_status" json:"reportStatus,omitempty"`
	ErrorMessage  *string            `db:"error_message" json:"errorMessage,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updatedAt"`
}

// LessonContext records the curriculum frame the essay was written against.
type LessonContext struct {
	LessonID             string   `json:"lessonId,omitempty"`
	TextTitle            string   `json:"textTitle,omitempty"`
	TextDescription      string   `json:"textDescription,omitempty"`
	AchievementStandards []string `json:"achievementStandards,omitempty"`
	Grade                string   `json:"grade,omitempty"`
	Semester             string   `json:"semester,omitempty"`
	Subject              string   `json:"subject,omitempty"`
	Language             string   `json:"language,omitempty"`
}

// Dimension is one scored axis of the evaluation rubric.
type Dimension struct {
	Scale   int    `json:"scale"`
	Value   int    `json:"value"`
	Comment string `json:"comment,omitempty"`
}

// Evaluation holds rubric scores parsed from the generator reply.
type Evaluation struct {
	Vocabulary Dimension `json:"vocabulary"`
	Grammar    Dimension `json:"grammar"`
	Logic      Dimension `json:"logic"`
	Empathy    Dimension `json:"empathy"`
}

// AIFeedback is the structured draft critique. Written exactly once, by the
// background drafting job.
type AIFeedback struct {
	ModelName              string     `json:"modelName"`
	CreatedAt              time.Time  `json:"createdAt"`
	PromptTemplateID       string     `json:"promptTemplateId,omitempty"`
	DraftFeedback          string     `json:"draftFeedback"`
	AchievementExplanation string     `json:"achievementExplanation,omitempty"`
	RevisedText            string     `json:"revisedText,omitempty"`
	Tags                   []string   `json:"tags,omitempty"`
	FinalFeedback          string     `json:"finalFeedback,omitempty"`
	ApprovedAt             *time.Time `json:"approvedAt,omitempty"`
}

// TeacherCorrection is the teacher-approved override of the draft.
type TeacherCorrection struct {
	TeacherID     string    `json:"teacherId,omitempty"`
	CorrectedAt   time.Time `json:"correctedAt"`
	FinalFeedback string    `json:"finalFeedback"`
	DraftFeedback string    `json:"draftFeedback,omitempty"`
}

// ReportStatus tracks delivery of the rendered feedback report.
type ReportStatus struct {
	StudentSent   bool       `json:"studentSent"`
	StudentSentAt *time.Time `json:"studentSentAt,omitempty"`
	ParentSent    bool       `json:"parentSent"`
	ParentSentAt  *time.Time `json:"parentSentAt,omitempty"`
	ReportPath    string     `json:"reportPath,omitempty"`
}

// CanTransition reports whether the status may advance to next.
func (s ProcessStatus) CanTransition(next ProcessStatus) bool {
	switch s {
	case StatusReceived:
		return next == StatusAIDrafted
	case StatusAIDrafted:
		return next == StatusCompleted
	case StatusCompleted:
		return next == StatusSent
	default:
		return false
	}
}

// Step maps a status to its progress indicator value.
func (s ProcessStatus) Step() int {
	switch s {
	case StatusAIDrafted:
		return StepAIDrafted
	case StatusCompleted:
		return StepCompleted
	case StatusSent:
		return StepSent
	default:
		return StepReceived
	}
}

func jsonbValue(v interface{}) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb column: %w", err)
	}
	return data, nil
}

func jsonbScan(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for jsonb column", value)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}

// Value marshals the lesson context to JSON for persistence.
func (l LessonContext) Value() (driver.Value, error) { return jsonbValue(l) }

// Scan unmarshals JSON payloads into the lesson context.
func (l *LessonContext) Scan(value interface{}) error { return jsonbScan(value, l) }

// Value marshals the evaluation to JSON for persistence.
func (e Evaluation) Value() (driver.Value, error) { return jsonbValue(e) }

// Scan unmarshals JSON payloads into the evaluation.
func (e *Evaluation) Scan(value interface{}) error { return jsonbScan(value, e) }

// Value marshals the feedback to JSON for persistence.
func (f AIFeedback) Value() (driver.Value, error) { return jsonbValue(f) }

// Scan unmarshals JSON payloads into the feedback.
func (f *AIFeedback) Scan(value interface{}) error { return jsonbScan(value, f) }

// Value marshals the correction to JSON for persistence.
func (t TeacherCorrection) Value() (driver.Value, error) { return jsonbValue(t) }

// Scan unmarshals JSON payloads into the correction.
func (t *TeacherCorrection) Scan(value interface{}) error { return jsonbScan(value, t) }

// Value marshals the report status to JSON for persistence.
func (r ReportStatus) Value() (driver.Value, error) { return jsonbValue(r) }

// Scan unmarshals JSON payloads into the report status.
func (r *ReportStatus) Scan(value interface{}) error { return jsonbScan(value, r) }
