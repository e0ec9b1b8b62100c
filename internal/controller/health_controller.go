package controller

import (
	"context"
	"net/http"
	"time"

	"quiz_master_backend/internal/util"
	"quiz_master_backend/pkg/cache"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthController struct {
	DB    *gorm.DB
	Cache cache.Cache
}

func NewHealthController(db *gorm.DB, c cache.Cache) *HealthController {
	return &HealthController{DB: db, Cache: c}
}

// @Summary 健康检查
// @Description 检查数据库与缓存状态，缓存不可用时服务仍可工作
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /api/health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	// 检查数据库连接
	sqlDB, err := c.DB.DB()
	if err != nil {
		util.InternalServerError(ctx)
		return
	}

	if err := sqlDB.PingContext(reqCtx); err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	cacheStatus := "up"
	if err := c.Cache.Ping(reqCtx); err != nil {
		cacheStatus = "down"
	}

	util.Success(ctx, gin.H{
		"status": "ok",
		"components": gin.H{
			"database": "up",
			"cache":    cacheStatus,
		},
	})
}
