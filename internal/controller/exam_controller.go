package controller

import (
	"online_exam_backend/internal/middleware"
	"online_exam_backend/internal/model"
	"online_exam_backend/internal/service"
	"online_exam_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ExamController struct {
	Exams       *service.ExamService
	Assignments *service.AssignmentService
	Feedback    *service.FeedbackService
}

func NewExamController(exams *service.ExamService, assignments *service.AssignmentService, feedback *service.FeedbackService) *ExamController {
	return &ExamController{Exams: exams, Assignments: assignments, Feedback: feedback}
}

type ImportQuestionsRequest struct {
	Questions []service.QuestionInput `json:"questions" binding:"required,dive"`
}

type SetExamStatusRequest struct {
	Status model.ExamStatus `json:"status" binding:"required"`
}

type AssignStudentsRequest struct {
	StudentIDs []uint `json:"studentIds" binding:"required"`
}

type CreateFeedbackRequest struct {
	Comment string `json:"comment" binding:"required"`
	Rating  int    `json:"rating" binding:"required"`
}

type RespondFeedbackRequest struct {
	Response string `json:"response" binding:"required"`
}

// @Summary 可参加的考试列表
// @Description 学生看到当前开放的已审核考试，教师看到自己创建的考试
// @Tags 考试
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Exam}
// @Router /api/exams [get]
func (c *ExamController) ListAvailable(ctx *gin.Context) {
	exams, err := c.Exams.ListAvailable(ctx.Request.Context(), middleware.GetActor(ctx))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, exams)
}

// @Summary 考试详情
// @Tags 考试
// @Produce json
// @Security BearerAuth
// @Param id path int true "Exam ID"
// @Success 200 {object} util.Response{data=model.Exam}
// @Router /api/exams/{id} [get]
func (c *ExamController) Get(ctx *gin.Context) {
	id, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	exam, err := c.Exams.Get(ctx.Request.Context(), middleware.GetActor(ctx), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, exam)
}

// @Summary 创建考试
// @Tags 教师
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.CreateExamRequest true "考试与题目"
// @Success 201 {object} util.Response{data=model.Exam}
// @Router /api/teacher/exams [post]
func (c *ExamController) Create(ctx *gin.Context) {
	var req service.CreateExamRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	exam, err := c.Exams.CreateExam(ctx.Request.Context(), middleware.GetActor(ctx), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, exam)
}

// @Summary 导入题目
// @Description 接收 PDF 解析服务输出的结构化题目列表；已有作答的考试不可导入
// @Tags 教师
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Exam ID"
// @Param body body ImportQuestionsRequest true "题目列表"
// @Success 201 {object} util.Response{data=[]model.Question}
// @Router /api/teacher/exams/{id}/questions/import [post]
func (c *ExamController) ImportQuestions(ctx *gin.Context) {
	id, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	var req ImportQuestionsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	questions, err := c.Exams.ImportQuestions(ctx.Request.Context(), middleware.GetActor(ctx), id, req.Questions)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, questions)
}

// @Summary 提交审核
// @Tags 教师
// @Produce json
// @Security BearerAuth
// @Param id path int true "Exam ID"
// @Success 200 {object} util.Response{data=model.Exam}
// @Router /api/teacher/exams/{id}/submit-review [post]
func (c *ExamController) SubmitReview(ctx *gin.Context) {
	id, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	exam, err := c.Exams.SubmitForReview(ctx.Request.Context(), middleware.GetActor(ctx), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, exam)
}

// @Summary 审核考试
// @Tags 管理员
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Exam ID"
// @Param body body SetExamStatusRequest true "approved | rejected"
// @Success 200 {object} util.Response{data=model.Exam}
// @Router /api/admin/exams/{id}/status [put]
func (c *ExamController) SetStatus(ctx *gin.Context) {
	id, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	var req SetExamStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	exam, err := c.Exams.SetStatus(ctx.Request.Context(), middleware.GetActor(ctx), id, req.Status)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, exam)
}

// @Summary 指派考生
// @Tags 教师
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Exam ID"
// @Param body body AssignStudentsRequest true "学生ID列表"
// @Success 200 {object} util.Response{data=[]model.Assignment}
// @Router /api/teacher/exams/{id}/assignments [post]
func (c *ExamController) Assign(ctx *gin.Context) {
	id, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	var req AssignStudentsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	list, err := c.Assignments.Assign(ctx.Request.Context(), middleware.GetActor(ctx), id, req.StudentIDs)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// @Summary 考生指派列表
// @Tags 教师
// @Produce json
// @Security BearerAuth
// @Param id path int true "Exam ID"
// @Success 200 {object} util.Response{data=[]model.Assignment}
// @Router /api/teacher/exams/{id}/assignments [get]
func (c *ExamController) ListAssignments(ctx *gin.Context) {
	id, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	list, err := c.Assignments.ListByExam(ctx.Request.Context(), middleware.GetActor(ctx), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// @Summary 提交考试反馈
// @Tags 考试
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Exam ID"
// @Param body body CreateFeedbackRequest true "评价（1-5 分）"
// @Success 201 {object} util.Response{data=model.Feedback}
// @Router /api/exams/{id}/feedback [post]
func (c *ExamController) CreateFeedback(ctx *gin.Context) {
	id, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	var req CreateFeedbackRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	f, err := c.Feedback.Create(ctx.Request.Context(), middleware.GetActor(ctx), id, req.Comment, req.Rating)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, f)
}

// @Summary 考试反馈列表
// @Tags 教师
// @Produce json
// @Security BearerAuth
// @Param id path int true "Exam ID"
// @Success 200 {object} util.Response{data=[]model.Feedback}
// @Router /api/teacher/exams/{id}/feedback [get]
func (c *ExamController) ListFeedback(ctx *gin.Context) {
	id, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	list, err := c.Feedback.ListByExam(ctx.Request.Context(), middleware.GetActor(ctx), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// @Summary 回复考试反馈
// @Tags 教师
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Feedback ID"
// @Param body body RespondFeedbackRequest true "回复内容"
// @Success 200 {object} util.Response{data=model.Feedback}
// @Router /api/teacher/feedback/{id}/respond [post]
func (c *ExamController) RespondFeedback(ctx *gin.Context) {
	id, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	var req RespondFeedbackRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	f, err := c.Feedback.Respond(ctx.Request.Context(), middleware.GetActor(ctx), id, req.Response)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, f)
}
