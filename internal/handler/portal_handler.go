package handler

import (
	"errors"
	"net/http"

	"github.com/eduprep/mocktest-backend/internal/middleware"
	"github.com/eduprep/mocktest-backend/internal/model"
	"github.com/eduprep/mocktest-backend/internal/response"
	"github.com/eduprep/mocktest-backend/internal/service"
	"github.com/eduprep/mocktest-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PortalHandler handles student-facing endpoints: the exam lobby and the
// timed session lifecycle.
type PortalHandler struct {
	sessionService *service.SessionService
	examService    *service.ExamService
}

// NewPortalHandler creates a new PortalHandler.
func NewPortalHandler(sessionService *service.SessionService, examService *service.ExamService) *PortalHandler {
	return &PortalHandler{
		sessionService: sessionService,
		examService:    examService,
	}
}

// ListExams godoc
// GET /api/v1/student/exams
// Returns the published exams a student can attempt.
func (h *PortalHandler) ListExams(c *gin.Context) {
	exams, err := h.examService.ListPublished(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if exams == nil {
		exams = []model.Exam{}
	}
	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// StartSession godoc
// POST /api/v1/student/exams/:exam_id/session
// Passes the instructions gate: creates or resumes the session and starts
// the countdown. Idempotent per student and exam.
func (h *PortalHandler) StartSession(c *gin.Context) {
	claims, examID, ok := h.sessionScope(c)
	if !ok {
		return
	}

	state, err := h.sessionService.Start(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// GetExamPaper godoc
// GET /api/v1/student/exams/:exam_id/paper
// Returns the cached exam payload (no correct answers). Requires an active
// session so papers cannot be downloaded without starting the test.
func (h *PortalHandler) GetExamPaper(c *gin.Context) {
	claims, examID, ok := h.sessionScope(c)
	if !ok {
		return
	}

	if _, err := h.sessionService.State(c.Request.Context(), examID, claims.UserID); err != nil {
		h.failSession(c, err)
		return
	}

	payload, err := h.examService.GetExamPayload(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrExamNotAvailable)
		return
	}
	response.Success(c, http.StatusOK, payload)
}

// GetSessionState godoc
// GET /api/v1/student/exams/:exam_id/session/state
// Returns the live session view. Covers the page-reload path: the client
// restores answers, marks, the current question and the clock from this.
func (h *PortalHandler) GetSessionState(c *gin.Context) {
	claims, examID, ok := h.sessionScope(c)
	if !ok {
		return
	}

	state, err := h.sessionService.State(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// SelectAnswer godoc
// POST /api/v1/student/exams/:exam_id/session/answer
func (h *PortalHandler) SelectAnswer(c *gin.Context) {
	claims, examID, ok := h.sessionScope(c)
	if !ok {
		return
	}

	var req model.SelectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	state, err := h.sessionService.SelectAnswer(c.Request.Context(), examID, claims.UserID, *req.OptionIndex)
	if err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// ToggleMark godoc
// POST /api/v1/student/exams/:exam_id/session/mark
func (h *PortalHandler) ToggleMark(c *gin.Context) {
	claims, examID, ok := h.sessionScope(c)
	if !ok {
		return
	}

	state, err := h.sessionService.ToggleMarkForReview(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// GoToQuestion godoc
// POST /api/v1/student/exams/:exam_id/session/goto
func (h *PortalHandler) GoToQuestion(c *gin.Context) {
	claims, examID, ok := h.sessionScope(c)
	if !ok {
		return
	}

	var req model.GoToQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	state, err := h.sessionService.GoToQuestion(c.Request.Context(), examID, claims.UserID, *req.Index)
	if err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// NextQuestion godoc
// POST /api/v1/student/exams/:exam_id/session/next
func (h *PortalHandler) NextQuestion(c *gin.Context) {
	claims, examID, ok := h.sessionScope(c)
	if !ok {
		return
	}

	state, err := h.sessionService.Next(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// PreviousQuestion godoc
// POST /api/v1/student/exams/:exam_id/session/previous
func (h *PortalHandler) PreviousQuestion(c *gin.Context) {
	claims, examID, ok := h.sessionScope(c)
	if !ok {
		return
	}

	state, err := h.sessionService.Previous(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// SubmitSession godoc
// POST /api/v1/student/exams/:exam_id/session/submit
// The confirmation dialog lives in the client; this endpoint is the final
// step and is safe to repeat.
func (h *PortalHandler) SubmitSession(c *gin.Context) {
	claims, examID, ok := h.sessionScope(c)
	if !ok {
		return
	}

	report, err := h.sessionService.Submit(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}

// GetResult godoc
// GET /api/v1/student/exams/:exam_id/session/result
func (h *PortalHandler) GetResult(c *gin.Context) {
	claims, examID, ok := h.sessionScope(c)
	if !ok {
		return
	}

	report, err := h.sessionService.Result(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		h.failSession(c, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}

// sessionScope extracts claims and the exam id path param, failing the
// request itself when either is missing.
func (h *PortalHandler) sessionScope(c *gin.Context) (*service.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}
	return claims, examID, true
}

func (h *PortalHandler) failSession(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExamNotAvailable):
		response.Fail(c, http.StatusBadRequest, response.ErrExamNotAvailable)
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotStarted)
	case errors.Is(err, service.ErrSessionSubmitted):
		response.Fail(c, http.StatusConflict, response.ErrSessionSubmitted)
	case errors.Is(err, service.ErrResultNotReady):
		response.Fail(c, http.StatusNotFound, response.ErrResultNotReady)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
