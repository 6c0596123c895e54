package controller

import (
	"strconv"

	"online_exam_backend/internal/service"
	"online_exam_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// uintParam writes a 400 and returns false when the path parameter is not a
// positive integer.
func uintParam(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil || id == 0 {
		util.BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func clientInfo(ctx *gin.Context) service.ClientInfo {
	return service.ClientInfo{
		IP:        ctx.ClientIP(),
		UserAgent: ctx.Request.UserAgent(),
	}
}
