package controller

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"quiz_master_backend/internal/service"
	"quiz_master_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ExportController struct {
	ExportService *service.ExportService
}

func NewExportController(exportService *service.ExportService) *ExportController {
	return &ExportController{ExportService: exportService}
}

type exportFunc func(ctx context.Context, p util.Principal) (*service.ExportFile, error)

// export 生成 CSV 后直接作为附件返回
func (c *ExportController) export(ctx *gin.Context, fn exportFunc) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	file, err := fn(ctx.Request.Context(), p)
	if err != nil {
		respondError(ctx, err)
		return
	}

	c.stream(ctx, p, file.FileName)
}

func (c *ExportController) stream(ctx *gin.Context, p util.Principal, fileName string) {
	rc, err := c.ExportService.OpenExport(ctx.Request.Context(), p, fileName)
	if err != nil {
		respondError(ctx, err)
		return
	}
	defer rc.Close()

	ctx.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, fileName))
	ctx.Header("Content-Type", util.MimeCSV)
	ctx.Status(http.StatusOK)
	if _, err := io.Copy(ctx.Writer, rc); err != nil {
		_ = ctx.Error(err)
	}
}

// ExportMyAttempts godoc
// @Summary 导出我的答题记录
// @Tags 导出
// @Produce text/csv
// @Security ApiKeyAuth
// @Success 200 {file} file "CSV 文件"
// @Router /api/exports/my-attempts [post]
func (c *ExportController) ExportMyAttempts(ctx *gin.Context) {
	c.export(ctx, c.ExportService.ExportUserAttempts)
}

// ExportUsers godoc
// @Summary 导出用户报告（管理员）
// @Tags 导出
// @Produce text/csv
// @Security ApiKeyAuth
// @Success 200 {file} file "CSV 文件"
// @Router /api/admin/exports/users [post]
func (c *ExportController) ExportUsers(ctx *gin.Context) {
	c.export(ctx, c.ExportService.ExportUsersReport)
}

// ExportQuizStatistics godoc
// @Summary 导出测验统计（管理员）
// @Tags 导出
// @Produce text/csv
// @Security ApiKeyAuth
// @Success 200 {file} file "CSV 文件"
// @Router /api/admin/exports/quiz-statistics [post]
func (c *ExportController) ExportQuizStatistics(ctx *gin.Context) {
	c.export(ctx, c.ExportService.ExportQuizStatistics)
}

// Download godoc
// @Summary 重新下载导出文件
// @Description 文件保留 24 小时。普通用户只能下载自己的答题导出。
// @Tags 导出
// @Produce text/csv
// @Security ApiKeyAuth
// @Param name path string true "文件名"
// @Success 200 {file} file "CSV 文件"
// @Failure 404 {object} util.Response
// @Router /api/exports/{name} [get]
func (c *ExportController) Download(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	c.stream(ctx, p, ctx.Param("name"))
}
