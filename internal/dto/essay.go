package dto

import "github.com/haneul-lab/essay-feedback-api/internal/models"

// SubmitEssayRequest captures POST /submit payloads.
type SubmitEssayRequest struct {
	Text string `json:"text" binding:"required"`
}

// SubmitEssayResponse acknowledges a submission before drafting finishes.
type SubmitEssayResponse struct {
	ProcessID string               `json:"processId"`
	Status    models.ProcessStatus `json:"status"`
	Message   string               `json:"message,omitempty"`
}

// ApproveEssayRequest captures POST /api/essays/approve payloads.
type ApproveEssayRequest struct {
	ProcessID      string `json:"processId" binding:"required" validate:"required"`
	FinalFeedback  string `json:"finalFeedback" binding:"required" validate:"required"`
	LessonFeedback string `json:"lessonFeedback,omitempty"`
	TeacherID      string `json:"teacherId,omitempty"`
}

// SendReportRequest captures POST /api/essays/send-report payloads.
// ReportType defaults to "student" when omitted.
type SendReportRequest struct {
	ProcessID  string            `json:"processId" binding:"required" validate:"required"`
	ReportType models.ReportType `json:"reportType,omitempty" validate:"omitempty,report_type"`
}

// TransitionResponse reports the record state after a teacher action.
type TransitionResponse struct {
	ProcessID string               `json:"processId"`
	Status    models.ProcessStatus `json:"status"`
	ReportURL string               `json:"reportUrl,omitempty"`
}
