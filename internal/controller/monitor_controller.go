package controller

import (
	"online_exam_backend/internal/authz"
	"online_exam_backend/internal/middleware"
	"online_exam_backend/internal/repository"
	"online_exam_backend/internal/service"
	"online_exam_backend/internal/util"
	"online_exam_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MonitorController struct {
	Hub      *service.MonitorHub
	ExamRepo *repository.ExamRepository
}

func NewMonitorController(hub *service.MonitorHub, examRepo *repository.ExamRepository) *MonitorController {
	return &MonitorController{Hub: hub, ExamRepo: examRepo}
}

// @Summary 实时监考（WebSocket）
// @Description 推送作答开始、违规、自动交卷、交卷、评分完成事件；浏览器可用 ?token= 传递令牌
// @Tags 教师
// @Security BearerAuth
// @Param id path int true "Exam ID"
// @Router /api/teacher/exams/{id}/monitor [get]
func (c *MonitorController) Monitor(ctx *gin.Context) {
	examID, ok := uintParam(ctx, "id")
	if !ok {
		return
	}
	exam, err := c.ExamRepo.FindByID(ctx.Request.Context(), examID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	actor := middleware.GetActor(ctx)
	if !authz.CanManage(actor, exam) {
		util.HandleError(ctx, util.ErrUnauthorized)
		return
	}

	if err := c.Hub.Serve(ctx.Writer, ctx.Request, examID, actor.ID()); err != nil {
		// Upgrade 已经写过响应
		logger.Log.Warn("monitor upgrade failed", zap.Uint("examId", examID), zap.Error(err))
	}
}
