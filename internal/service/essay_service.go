package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/haneul-lab/essay-feedback-api/internal/dto"
	"github.com/haneul-lab/essay-feedback-api/internal/models"
	"github.com/haneul-lab/essay-feedback-api/internal/repository"
	appErrors "github.com/haneul-lab/essay-feedback-api/pkg/errors"
	"github.com/haneul-lab/essay-feedback-api/pkg/jobs"
)

const (
	// DraftJobType tags queued drafting jobs.
	DraftJobType = "essay.draft"

	essayListCacheKey = "essays:all"
	essayCachePattern = "essays:*"
)

// errNoChange aborts a mutator without treating the call as a failure. Used
// for idempotent re-triggers: the transaction rolls back and the caller
// reports the current state unchanged.
var errNoChange = errors.New("no state change")

// EssayStore is the record store contract the service depends on.
type EssayStore interface {
	List(ctx context.Context) ([]models.EssayRecord, error)
	GetByProcessID(ctx context.Context, processID string) (*models.EssayRecord, error)
	Insert(ctx context.Context, record *models.EssayRecord) error
	UpdateByProcessID(ctx context.Context, processID string, mutate repository.Mutator) (*models.EssayRecord, error)
	ListPendingDrafts(ctx context.Context, limit int) ([]models.EssayRecord, error)
}

// DraftDispatcher enqueues background drafting work.
type DraftDispatcher interface {
	Enqueue(job jobs.Job) error
}

// ReportRenderer produces the feedback report document for a record.
type ReportRenderer interface {
	Render(record models.EssayRecord) ([]byte, error)
}

// ReportStorage persists and serves rendered report files.
type ReportStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

// ReportSigner issues and validates signed report download tokens.
type ReportSigner interface {
	Generate(processID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (processID, relPath string, expiresAt time.Time, err error)
}

// EssayServiceDeps wires the essay service collaborators.
type EssayServiceDeps struct {
	Store         EssayStore
	Drafts        DraftDispatcher
	Cache         *CacheService
	Renderer      ReportRenderer
	Files         ReportStorage
	Signer        ReportSigner
	Lesson        models.LessonContext
	Validator     *validator.Validate
	Logger        *zap.Logger
	RecoveryLimit int
	ReportRoute   string
}

// EssayService implements the submission lifecycle: intake, listing, teacher
// approval, and report dispatch.
type EssayService struct {
	store         EssayStore
	drafts        DraftDispatcher
	cache         *CacheService
	renderer      ReportRenderer
	files         ReportStorage
	signer        ReportSigner
	lesson        models.LessonContext
	validator     *validator.Validate
	logger        *zap.Logger
	recoveryLimit int
	reportRoute   string
}

// NewEssayService constructs the service.
func NewEssayService(deps EssayServiceDeps) *EssayService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	route := deps.ReportRoute
	if route == "" {
		route = "/api/essays/report"
	}
	validate := deps.Validator
	if validate == nil {
		validate = validator.New()
	}
	_ = validate.RegisterValidation("report_type", func(fl validator.FieldLevel) bool {
		switch models.ReportType(fl.Field().String()) {
		case models.ReportTypeStudent, models.ReportTypeParent:
			return true
		default:
			return false
		}
	})
	return &EssayService{
		store:         deps.Store,
		drafts:        deps.Drafts,
		cache:         deps.Cache,
		renderer:      deps.Renderer,
		files:         deps.Files,
		signer:        deps.Signer,
		lesson:        deps.Lesson,
		validator:     validate,
		logger:        logger,
		recoveryLimit: deps.RecoveryLimit,
		reportRoute:   route,
	}
}

// Submit accepts a student essay, persists it in the received state, and
// schedules draft generation in the background. The caller gets an immediate
// acknowledgement; drafting outcome never surfaces here.
func (s *EssayService) Submit(ctx context.Context, req dto.SubmitEssayRequest) (*dto.SubmitEssayResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, appErrors.ErrEmptyInput
	}

	now := time.Now()
	lesson := s.lesson
	record := &models.EssayRecord{
		ProcessID:     newProcessID(now),
		Status:        models.StatusReceived,
		EssayID:       newEssayID(),
		StudentEssay:  text,
		Prompt:        lesson.TextDescription,
		LessonContext: &lesson,
	}

	if err := s.store.Insert(ctx, record); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store submission")
	}

	if err := s.drafts.Enqueue(jobs.Job{ID: record.ProcessID, Type: DraftJobType}); err != nil {
		// Submission stays durable; the record carries the failure and cold
		// start recovery can pick it up later.
		s.logger.Error("failed to enqueue draft job",
			zap.String("process_id", record.ProcessID), zap.Error(err))
		msg := fmt.Sprintf("draft scheduling failed: %v", err)
		if _, uerr := s.store.UpdateByProcessID(ctx, record.ProcessID, func(rec *models.EssayRecord) error {
			if rec.Status != models.StatusReceived {
				return errNoChange
			}
			rec.ErrorMessage = &msg
			return nil
		}); uerr != nil && !errors.Is(uerr, errNoChange) {
			s.logger.Error("failed to record scheduling error",
				zap.String("process_id", record.ProcessID), zap.Error(uerr))
		}
	}

	s.invalidateListing(ctx)

	return &dto.SubmitEssayResponse{
		ProcessID: record.ProcessID,
		Status:    record.Status,
		Message:   "에세이가 접수되었습니다. AI 첨삭이 진행 중입니다.",
	}, nil
}

// List returns all records in submission order, through the listing cache
// when one is configured.
func (s *EssayService) List(ctx context.Context) ([]models.EssayRecord, error) {
	var cached []models.EssayRecord
	if hit, err := s.cache.Get(ctx, essayListCacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	records, err := s.store.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list essays")
	}

	_ = s.cache.Set(ctx, essayListCacheKey, records, 0)
	return records, nil
}

// Get returns one record by process id.
func (s *EssayService) Get(ctx context.Context, processID string) (*models.EssayRecord, error) {
	record, err := s.store.GetByProcessID(ctx, processID)
	if err != nil {
		return nil, s.mapStoreError(err, processID)
	}
	return record, nil
}

// Approve records the teacher's final feedback and advances the record to
// completed. Re-approving an already completed or sent record is a no-op
// success and never overwrites the stored correction.
func (s *EssayService) Approve(ctx context.Context, req dto.ApproveEssayRequest) (*dto.TransitionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	final := strings.TrimSpace(req.FinalFeedback)
	if final == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "finalFeedback is required")
	}

	record, err := s.store.UpdateByProcessID(ctx, req.ProcessID, func(rec *models.EssayRecord) error {
		switch rec.Status {
		case models.StatusCompleted, models.StatusSent:
			return errNoChange
		case models.StatusAIDrafted:
		default:
			return appErrors.Clone(appErrors.ErrInvalidState, "draft feedback is not ready yet")
		}

		now := time.Now().UTC()
		draft := ""
		if rec.AIFeedback != nil {
			draft = rec.AIFeedback.DraftFeedback
			rec.AIFeedback.FinalFeedback = final
			rec.AIFeedback.ApprovedAt = &now
		}
		rec.Teacher = &models.TeacherCorrection{
			TeacherID:     req.TeacherID,
			CorrectedAt:   now,
			FinalFeedback: final,
			DraftFeedback: draft,
		}
		if note := strings.TrimSpace(req.LessonFeedback); note != "" {
			rec.LessonNote = &note
		}
		rec.Status = models.StatusCompleted
		return nil
	})
	if err != nil {
		if errors.Is(err, errNoChange) {
			return s.currentTransition(ctx, req.ProcessID)
		}
		return nil, s.mapStoreError(err, req.ProcessID)
	}

	s.invalidateListing(ctx)

	return &dto.TransitionResponse{ProcessID: record.ProcessID, Status: record.Status}, nil
}

// SendReport dispatches the feedback report. Student reports require a
// completed record, render a document, and advance the record to sent.
// Parent reports only flag delivery and are available once the record is
// completed. Repeated sends are no-op successes.
func (s *EssayService) SendReport(ctx context.Context, req dto.SendReportRequest) (*dto.TransitionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	reportType := req.ReportType
	if reportType == "" {
		reportType = models.ReportTypeStudent
	}

	switch reportType {
	case models.ReportTypeStudent:
		return s.sendStudentReport(ctx, req.ProcessID)
	case models.ReportTypeParent:
		return s.sendParentReport(ctx, req.ProcessID)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown report type %q", reportType))
	}
}

func (s *EssayService) sendStudentReport(ctx context.Context, processID string) (*dto.TransitionResponse, error) {
	current, err := s.store.GetByProcessID(ctx, processID)
	if err != nil {
		return nil, s.mapStoreError(err, processID)
	}
	if current.Status == models.StatusSent {
		return &dto.TransitionResponse{
			ProcessID: processID,
			Status:    current.Status,
			ReportURL: s.reportURL(current),
		}, nil
	}
	if current.Status != models.StatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "report requires an approved record")
	}

	relPath, err := s.renderReport(current)
	if err != nil {
		return nil, err
	}

	record, err := s.store.UpdateByProcessID(ctx, processID, func(rec *models.EssayRecord) error {
		if rec.Status == models.StatusSent {
			return errNoChange
		}
		if rec.Status != models.StatusCompleted {
			return appErrors.Clone(appErrors.ErrInvalidState, "report requires an approved record")
		}
		now := time.Now().UTC()
		if rec.Report == nil {
			rec.Report = &models.ReportStatus{}
		}
		rec.Report.StudentSent = true
		rec.Report.StudentSentAt = &now
		if relPath != "" {
			rec.Report.ReportPath = relPath
		}
		rec.Status = models.StatusSent
		return nil
	})
	if err != nil {
		if errors.Is(err, errNoChange) {
			return s.currentTransition(ctx, processID)
		}
		// The rendered file was never recorded on the row; drop it so the
		// storage dir does not accumulate orphans.
		if relPath != "" {
			if derr := s.files.Delete(relPath); derr != nil {
				s.logger.Warn("failed to remove orphaned report file",
					zap.String("process_id", processID), zap.Error(derr))
			}
		}
		return nil, s.mapStoreError(err, processID)
	}

	s.invalidateListing(ctx)

	return &dto.TransitionResponse{
		ProcessID: record.ProcessID,
		Status:    record.Status,
		ReportURL: s.reportURL(record),
	}, nil
}

func (s *EssayService) sendParentReport(ctx context.Context, processID string) (*dto.TransitionResponse, error) {
	record, err := s.store.UpdateByProcessID(ctx, processID, func(rec *models.EssayRecord) error {
		if rec.Status != models.StatusCompleted && rec.Status != models.StatusSent {
			return appErrors.Clone(appErrors.ErrInvalidState, "report requires an approved record")
		}
		if rec.Report != nil && rec.Report.ParentSent {
			return errNoChange
		}
		now := time.Now().UTC()
		if rec.Report == nil {
			rec.Report = &models.ReportStatus{}
		}
		rec.Report.ParentSent = true
		rec.Report.ParentSentAt = &now
		return nil
	})
	if err != nil {
		if errors.Is(err, errNoChange) {
			return s.currentTransition(ctx, processID)
		}
		return nil, s.mapStoreError(err, processID)
	}

	s.invalidateListing(ctx)

	return &dto.TransitionResponse{ProcessID: record.ProcessID, Status: record.Status}, nil
}

// ResolveReportDownload validates a signed token and opens the referenced
// report file. The file must still match the path recorded on the record.
func (s *EssayService) ResolveReportDownload(ctx context.Context, token string) (*os.File, string, error) {
	if s.signer == nil || s.files == nil {
		return nil, "", appErrors.Clone(appErrors.ErrInternal, "report downloads are not configured")
	}

	processID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired report link")
	}

	record, err := s.store.GetByProcessID(ctx, processID)
	if err != nil {
		return nil, "", s.mapStoreError(err, processID)
	}
	if record.Report == nil || record.Report.ReportPath == "" || record.Report.ReportPath != relPath {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "report link no longer valid")
	}

	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "report file not found")
	}
	return file, filepath.Base(relPath), nil
}

// RecoverPendingDrafts re-enqueues drafting for records that never made it
// past received. Called once on startup.
func (s *EssayService) RecoverPendingDrafts(ctx context.Context) (int, error) {
	records, err := s.store.ListPendingDrafts(ctx, s.recoveryLimit)
	if err != nil {
		return 0, fmt.Errorf("recover pending drafts: %w", err)
	}

	recovered := 0
	for _, record := range records {
		if err := s.drafts.Enqueue(jobs.Job{ID: record.ProcessID, Type: DraftJobType}); err != nil {
			s.logger.Error("failed to re-enqueue draft",
				zap.String("process_id", record.ProcessID), zap.Error(err))
			continue
		}
		recovered++
	}

	if recovered > 0 {
		s.logger.Info("recovered pending drafts", zap.Int("count", recovered))
	}
	return recovered, nil
}

func (s *EssayService) renderReport(record *models.EssayRecord) (string, error) {
	if s.renderer == nil || s.files == nil {
		return "", nil
	}
	data, err := s.renderer.Render(*record)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render feedback report")
	}
	relPath := filepath.Join(record.ProcessID, "feedback_report.pdf")
	saved, err := s.files.Save(relPath, data)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store feedback report")
	}
	return saved, nil
}

func (s *EssayService) reportURL(record *models.EssayRecord) string {
	if s.signer == nil || record == nil || record.Report == nil || record.Report.ReportPath == "" {
		return ""
	}
	token, _, err := s.signer.Generate(record.ProcessID, record.Report.ReportPath)
	if err != nil {
		s.logger.Warn("failed to sign report url",
			zap.String("process_id", record.ProcessID), zap.Error(err))
		return ""
	}
	return s.reportRoute + "/" + token
}

func (s *EssayService) currentTransition(ctx context.Context, processID string) (*dto.TransitionResponse, error) {
	record, err := s.store.GetByProcessID(ctx, processID)
	if err != nil {
		return nil, s.mapStoreError(err, processID)
	}
	return &dto.TransitionResponse{
		ProcessID: record.ProcessID,
		Status:    record.Status,
		ReportURL: s.reportURL(record),
	}, nil
}

func (s *EssayService) invalidateListing(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, essayCachePattern); err != nil {
		s.logger.Warn("failed to invalidate listing cache", zap.Error(err))
	}
}

func (s *EssayService) mapStoreError(err error, processID string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("process %s not found", processID))
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "record store failure")
}

func newProcessID(now time.Time) string {
	return fmt.Sprintf("proc_%s_%s", now.Format("20060102_150405"), randomHex(6))
}

func newEssayID() string {
	return "ESSAY_" + randomHex(8)
}

func randomHex(n int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > len(id) {
		n = len(id)
	}
	return id[:n]
}
