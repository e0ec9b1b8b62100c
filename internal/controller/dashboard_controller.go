package controller

import (
	"quiz_master_backend/internal/service"
	"quiz_master_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type DashboardController struct {
	DashboardService *service.DashboardService
}

func NewDashboardController(dashboardService *service.DashboardService) *DashboardController {
	return &DashboardController{DashboardService: dashboardService}
}

// GetUserDashboard godoc
// @Summary 用户首页
// @Description 答题次数、平均分、通过率、最近答题以及当前可答测验数
// @Tags 首页
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.UserDashboard}
// @Router /api/dashboard [get]
func (c *DashboardController) GetUserDashboard(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	dashboard, err := c.DashboardService.GetUserDashboard(ctx.Request.Context(), p)
	if err != nil {
		respondError(ctx, err)
		return
	}

	util.Success(ctx, dashboard)
}

// GetAdminDashboard godoc
// @Summary 管理员首页
// @Tags 首页
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.AdminDashboard}
// @Router /api/admin/dashboard [get]
func (c *DashboardController) GetAdminDashboard(ctx *gin.Context) {
	dashboard, err := c.DashboardService.GetAdminDashboard()
	if err != nil {
		respondError(ctx, err)
		return
	}

	util.Success(ctx, dashboard)
}
