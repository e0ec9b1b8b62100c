package controller

import (
	"quiz_master_backend/internal/service"
	"quiz_master_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// CatalogController 科目与章节
type CatalogController struct {
	CatalogService *service.CatalogService
}

func NewCatalogController(catalogService *service.CatalogService) *CatalogController {
	return &CatalogController{CatalogService: catalogService}
}

// ListSubjects godoc
// @Summary 科目列表
// @Description 普通用户只能看到启用的科目，附带章节数与测验数
// @Tags 科目
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.SubjectView}
// @Router /api/subjects [get]
func (c *CatalogController) ListSubjects(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	subjects, err := c.CatalogService.ListSubjects(p)
	if err != nil {
		respondError(ctx, err)
		return
	}

	util.Success(ctx, subjects)
}

// GetSubject godoc
// @Summary 科目详情
// @Tags 科目
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "科目ID"
// @Success 200 {object} util.Response{data=model.Subject}
// @Failure 404 {object} util.Response
// @Router /api/subjects/{id} [get]
func (c *CatalogController) GetSubject(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}

	subject, err := c.CatalogService.GetSubject(p, id)
	if err != nil {
		respondError(ctx, err)
		return
	}

	util.Success(ctx, subject)
}

// CreateSubject godoc
// @Summary 创建科目（管理员）
// @Tags 科目
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.SubjectRequest true "科目信息"
// @Success 201 {object} util.Response{data=model.Subject}
// @Failure 409 {object} util.Response "名称已存在"
// @Router /api/admin/subjects [post]
func (c *CatalogController) CreateSubject(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	var req service.SubjectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	subject, err := c.CatalogService.CreateSubject(ctx.Request.Context(), p, req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	util.Created(ctx, subject)
}

// UpdateSubject godoc
// @Summary 更新科目（管理员）
// @Tags 科目
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "科目ID"
// @Param body body service.SubjectRequest true "科目信息"
// @Success 200 {object} util.Response{data=model.Subject}
// @Router /api/admin/subjects/{id} [put]
func (c *CatalogController) UpdateSubject(ctx *gin.Context) {
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req service.SubjectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	subject, err := c.CatalogService.UpdateSubject(ctx.Request.Context(), id, req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	util.Success(ctx, subject)
}

// DeleteSubject godoc
// @Summary 删除科目（管理员）
// @Description 同时删除其下章节、测验、题目及答题记录
// @Tags 科目
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "科目ID"
// @Success 200 {object} util.Response
// @Router /api/admin/subjects/{id} [delete]
func (c *CatalogController) DeleteSubject(ctx *gin.Context) {
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}

	if err := c.CatalogService.DeleteSubject(ctx.Request.Context(), id); err != nil {
		respondError(ctx, err)
		return
	}

	util.Success(ctx, nil)
}

// ListChapters godoc
// @Summary 科目下的章节
// @Tags 章节
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "科目ID"
// @Success 200 {object} util.Response{data=[]service.ChapterView}
// @Router /api/subjects/{id}/chapters [get]
func (c *CatalogController) ListChapters(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}

	chapters, err := c.CatalogService.ListChapters(p, id)
	if err != nil {
		respondError(ctx, err)
		return
	}

	util.Success(ctx, chapters)
}

// GetChapter godoc
// @Summary 章节详情
// @Tags 章节
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "章节ID"
// @Success 200 {object} util.Response{data=model.Chapter}
// @Router /api/chapters/{id} [get]
func (c *CatalogController) GetChapter(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}

	chapter, err := c.CatalogService.GetChapter(p, id)
	if err != nil {
		respondError(ctx, err)
		return
	}

	util.Success(ctx, chapter)
}

// CreateChapter godoc
// @Summary 创建章节（管理员）
// @Tags 章节
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "科目ID"
// @Param body body service.ChapterRequest true "章节信息"
// @Success 201 {object} util.Response{data=model.Chapter}
// @Router /api/admin/subjects/{id}/chapters [post]
func (c *CatalogController) CreateChapter(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	subjectID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req service.ChapterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	chapter, err := c.CatalogService.CreateChapter(ctx.Request.Context(), p, subjectID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	util.Created(ctx, chapter)
}

// UpdateChapter godoc
// @Summary 更新章节（管理员）
// @Tags 章节
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "章节ID"
// @Param body body service.ChapterRequest true "章节信息"
// @Success 200 {object} util.Response{data=model.Chapter}
// @Router /api/admin/chapters/{id} [put]
func (c *CatalogController) UpdateChapter(ctx *gin.Context) {
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req service.ChapterRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	chapter, err := c.CatalogService.UpdateChapter(ctx.Request.Context(), id, req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	util.Success(ctx, chapter)
}

// DeleteChapter godoc
// @Summary 删除章节（管理员）
// @Tags 章节
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "章节ID"
// @Success 200 {object} util.Response
// @Router /api/admin/chapters/{id} [delete]
func (c *CatalogController) DeleteChapter(ctx *gin.Context) {
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}

	if err := c.CatalogService.DeleteChapter(ctx.Request.Context(), id); err != nil {
		respondError(ctx, err)
		return
	}

	util.Success(ctx, nil)
}
