package controller

import (
	"online_exam_backend/internal/settings"
	"online_exam_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SettingsController struct {
	Holder *settings.Holder
}

func NewSettingsController(holder *settings.Holder) *SettingsController {
	return &SettingsController{Holder: holder}
}

// @Summary 系统设置
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response{data=settings.SystemSettings}
// @Router /api/system-settings [get]
func (c *SettingsController) Get(ctx *gin.Context) {
	s, _ := c.Holder.Load()
	util.Success(ctx, s)
}

// @Summary 更新系统设置
// @Tags 管理员
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body settings.SystemSettings true "站点设置"
// @Success 200 {object} util.Response{data=settings.SystemSettings}
// @Router /api/admin/system-settings [put]
func (c *SettingsController) Update(ctx *gin.Context) {
	var req settings.SystemSettings
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if req.SiteName == "" {
		util.BadRequest(ctx, "siteName is required")
		return
	}
	c.Holder.Replace(req)
	util.Success(ctx, req)
}
