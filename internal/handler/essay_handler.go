package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/haneul-lab/essay-feedback-api/internal/dto"
	"github.com/haneul-lab/essay-feedback-api/internal/service"
	appErrors "github.com/haneul-lab/essay-feedback-api/pkg/errors"
	"github.com/haneul-lab/essay-feedback-api/pkg/response"
)

// EssayHandler exposes the essay lifecycle over HTTP.
type EssayHandler struct {
	essays *service.EssayService
}

// NewEssayHandler constructs the handler.
func NewEssayHandler(essays *service.EssayService) *EssayHandler {
	return &EssayHandler{essays: essays}
}

// Submit godoc
// @Summary Submit a student essay
// @Description Stores the essay and schedules AI draft feedback in the background
// @Tags essays
// @Accept json
// @Produce json
// @Param request body dto.SubmitEssayRequest true "Essay text"
// @Success 201 {object} response.Envelope{data=dto.SubmitEssayResponse}
// @Failure 400 {object} response.Envelope
// @Router /submit [post]
func (h *EssayHandler) Submit(c *gin.Context) {
	var req dto.SubmitEssayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	resp, err := h.essays.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, resp)
}

// List godoc
// @Summary List essay records
// @Description Returns every record in submission order
// @Tags essays
// @Produce json
// @Success 200 {object} response.Envelope{data=[]models.EssayRecord}
// @Router /essays [get]
func (h *EssayHandler) List(c *gin.Context) {
	records, err := h.essays.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, nil, map[string]interface{}{"count": len(records)})
}

// Get godoc
// @Summary Get one essay record
// @Tags essays
// @Produce json
// @Param processId path string true "Process identifier"
// @Success 200 {object} response.Envelope{data=models.EssayRecord}
// @Failure 404 {object} response.Envelope
// @Router /essays/{processId} [get]
func (h *EssayHandler) Get(c *gin.Context) {
	record, err := h.essays.Get(c.Request.Context(), c.Param("processId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}

// Approve godoc
// @Summary Approve draft feedback
// @Description Records the teacher's final feedback and completes the record
// @Tags essays
// @Accept json
// @Produce json
// @Param request body dto.ApproveEssayRequest true "Approval payload"
// @Success 200 {object} response.Envelope{data=dto.TransitionResponse}
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /essays/approve [post]
func (h *EssayHandler) Approve(c *gin.Context) {
	var req dto.ApproveEssayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	resp, err := h.essays.Approve(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, resp, nil)
}

// SendReport godoc
// @Summary Send the feedback report
// @Description Dispatches the student or parent report for an approved record
// @Tags essays
// @Accept json
// @Produce json
// @Param request body dto.SendReportRequest true "Send payload"
// @Success 200 {object} response.Envelope{data=dto.TransitionResponse}
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /essays/send-report [post]
func (h *EssayHandler) SendReport(c *gin.Context) {
	var req dto.SendReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}

	resp, err := h.essays.SendReport(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, resp, nil)
}

// DownloadReport godoc
// @Summary Download a rendered feedback report
// @Description Streams the PDF referenced by a signed download token
// @Tags essays
// @Produce application/pdf
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /essays/report/{token} [get]
func (h *EssayHandler) DownloadReport(c *gin.Context) {
	file, name, err := h.essays.ResolveReportDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "failed to stat report file"))
		return
	}

	c.DataFromReader(http.StatusOK, info.Size(), "application/pdf", file, map[string]string{
		"Content-Disposition": `attachment; filename="` + name + `"`,
	})
}

// RegisterRoutes wires the review endpoints onto the API group.
func (h *EssayHandler) RegisterRoutes(api *gin.RouterGroup) {
	essays := api.Group("/essays")
	{
		essays.GET("", h.List)
		essays.POST("/approve", h.Approve)
		essays.POST("/send-report", h.SendReport)
		essays.GET("/report/:token", h.DownloadReport)
		essays.GET("/:processId", h.Get)
	}
}

// RegisterSubmissionRoutes wires the student-facing intake endpoints at the
// router root. /analyze is a legacy alias kept for older clients.
func (h *EssayHandler) RegisterSubmissionRoutes(r gin.IRoutes) {
	r.POST("/submit", h.Submit)
	r.POST("/analyze", h.Submit)
}
