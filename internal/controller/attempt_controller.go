package controller

import (
	"online_exam_backend/internal/middleware"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/service"
	"online_exam_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	Assignments  *service.AssignmentService
	Attempts     *service.AttemptService
	Violations   *service.ViolationService
	Grading      *service.GradingService
	Certificates *service.CertificateService
}

func NewAttemptController(
	assignments *service.AssignmentService,
	attempts *service.AttemptService,
	violations *service.ViolationService,
	grading *service.GradingService,
	certificates *service.CertificateService,
) *AttemptController {
	return &AttemptController{
		Assignments:  assignments,
		Attempts:     attempts,
		Violations:   violations,
		Grading:      grading,
		Certificates: certificates,
	}
}

type StartAttemptRequest struct {
	ExamID uint `json:"examId" binding:"required"`
}

type SaveAnswerRequest struct {
	QuestionID uint   `json:"questionId" binding:"required"`
	Answer     string `json:"answer"`
}

type LogViolationRequest struct {
	ViolationType model.ViolationType `json:"violationType"`
	Details       string              `json:"details"`
}

type GradeAnswerRequest struct {
	Marks    *float64 `json:"marks" binding:"required"`
	Feedback string   `json:"feedback"`
}

// @Summary 开始考试（或恢复未完成的作答）
// @Tags 考试作答
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body StartAttemptRequest true "考试ID"
// @Success 200 {object} util.Response{data=model.Attempt}
// @Failure 403 {object} util.Response "not approved / banned"
// @Failure 409 {object} util.Response "already completed"
// @Router /api/attempts/start [post]
func (c *AttemptController) Start(ctx *gin.Context) {
	var req StartAttemptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	attempt, err := c.Assignments.StartAttempt(ctx.Request.Context(), middleware.GetActor(ctx), req.ExamID, clientInfo(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary 我的考试记录
// @Tags 考试作答
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Attempt}
// @Router /api/attempts [get]
func (c *AttemptController) ListMine(ctx *gin.Context) {
	attempts, err := c.Attempts.ListMine(ctx.Request.Context(), middleware.GetActor(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}

// @Summary 作答详情
// @Tags 考试作答
// @Produce json
// @Security BearerAuth
// @Param id path string true "Attempt ID"
// @Success 200 {object} util.Response{data=model.Attempt}
// @Router /api/attempts/{id} [get]
func (c *AttemptController) Get(ctx *gin.Context) {
	attempt, err := c.Attempts.Get(ctx.Request.Context(), middleware.GetActor(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary 获取试卷（不含答案）
// @Tags 考试作答
// @Produce json
// @Security BearerAuth
// @Param id path string true "Attempt ID"
// @Success 200 {object} util.Response{data=service.Paper}
// @Router /api/attempts/{id}/paper [get]
func (c *AttemptController) Paper(ctx *gin.Context) {
	paper, err := c.Attempts.Paper(ctx.Request.Context(), middleware.GetActor(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, paper)
}

// @Summary 保存答案
// @Tags 考试作答
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Attempt ID"
// @Param body body SaveAnswerRequest true "答案"
// @Success 200 {object} util.Response{data=model.Answer}
// @Router /api/attempts/{id}/answers [post]
func (c *AttemptController) SaveAnswer(ctx *gin.Context) {
	var req SaveAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	ans, err := c.Attempts.SaveAnswer(ctx.Request.Context(), middleware.GetActor(ctx), ctx.Param("id"), req.QuestionID, req.Answer, clientInfo(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, ans)
}

// @Summary 上报违规事件
// @Description 切屏、复制粘贴累计达到 3 次后作答会被自动提交
// @Tags 考试作答
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Attempt ID"
// @Param body body LogViolationRequest true "违规类型"
// @Success 200 {object} util.Response{data=service.ViolationResult}
// @Router /api/attempts/{id}/violations [post]
func (c *AttemptController) LogViolation(ctx *gin.Context) {
	var req LogViolationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	res, err := c.Violations.LogViolation(ctx.Request.Context(), middleware.GetActor(ctx), ctx.Param("id"), req.ViolationType, req.Details)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// @Summary 违规记录
// @Tags 考试作答
// @Produce json
// @Security BearerAuth
// @Param id path string true "Attempt ID"
// @Success 200 {object} util.Response{data=[]model.ViolationLog}
// @Router /api/attempts/{id}/violations [get]
func (c *AttemptController) ListViolations(ctx *gin.Context) {
	logs, err := c.Violations.List(ctx.Request.Context(), middleware.GetActor(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, logs)
}

// @Summary 交卷
// @Tags 考试作答
// @Produce json
// @Security BearerAuth
// @Param id path string true "Attempt ID"
// @Success 200 {object} util.Response{data=model.Attempt}
// @Router /api/attempts/{id}/submit [post]
func (c *AttemptController) Submit(ctx *gin.Context) {
	attempt, err := c.Attempts.Submit(ctx.Request.Context(), middleware.GetActor(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary 获取成绩证书
// @Tags 考试作答
// @Produce json
// @Security BearerAuth
// @Param id path string true "Attempt ID"
// @Success 200 {object} util.Response{data=model.Certificate}
// @Router /api/attempts/{id}/certificate [get]
func (c *AttemptController) Certificate(ctx *gin.Context) {
	cert, err := c.Certificates.Issue(ctx.Request.Context(), middleware.GetActor(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, cert)
}

// @Summary 考试的全部作答（监考/阅卷）
// @Tags 教师
// @Produce json
// @Security BearerAuth
// @Param id path int true "Exam ID"
// @Success 200 {object} util.Response{data=[]model.Attempt}
// @Router /api/teacher/exams/{id}/attempts [get]
func (c *AttemptController) ListByExam(ctx *gin.Context) {
	examID, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	attempts, err := c.Attempts.ListByExam(ctx.Request.Context(), middleware.GetActor(ctx), examID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}

// @Summary 主观题人工评分
// @Tags 教师
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Attempt ID"
// @Param answerId path string true "Answer ID"
// @Param body body GradeAnswerRequest true "分数与评语"
// @Success 200 {object} util.Response{data=model.Attempt}
// @Router /api/teacher/attempts/{id}/answers/{answerId}/grade [post]
func (c *AttemptController) GradeAnswer(ctx *gin.Context) {
	var req GradeAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	attempt, err := c.Grading.GradeSubjective(ctx.Request.Context(), middleware.GetActor(ctx), ctx.Param("id"), ctx.Param("answerId"), *req.Marks, req.Feedback)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}
