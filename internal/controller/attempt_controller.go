package controller

import (
	"net/http"

	"quiz_master_backend/internal/service"
	"quiz_master_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// AttemptController 答题流程：开始、取题、提交、查看结果
type AttemptController struct {
	AttemptService *service.AttemptService
}

func NewAttemptController(attemptService *service.AttemptService) *AttemptController {
	return &AttemptController{AttemptService: attemptService}
}

// StartAttempt godoc
// @Summary 开始答题
// @Description 已有进行中的答题时返回该记录（resumed=true），否则新建
// @Tags 答题
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=service.StartResult} "续答"
// @Success 201 {object} util.Response{data=service.StartResult} "新建"
// @Failure 400 {object} util.Response "测验不可用"
// @Router /api/quizzes/{id}/attempts [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	quizID, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}

	result, err := c.AttemptService.StartAttempt(p, quizID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	if result.Resumed {
		util.Success(ctx, result)
		return
	}
	util.Created(ctx, result)
}

// GetAttempt godoc
// @Summary 答题记录
// @Tags 答题
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "答题ID"
// @Success 200 {object} util.Response{data=model.QuizAttempt}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/attempts/{id} [get]
func (c *AttemptController) GetAttempt(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}

	attempt, err := c.AttemptService.GetAttempt(p, id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// GetQuestions godoc
// @Summary 获取答题题目
// @Description 题目顺序随机，不包含正确答案，包含已保存的选择
// @Tags 答题
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "答题ID"
// @Success 200 {object} util.Response{data=service.AttemptQuestions}
// @Router /api/attempts/{id}/questions [get]
func (c *AttemptController) GetQuestions(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}

	questions, err := c.AttemptService.GetAttemptQuestions(p, id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, questions)
}

// SubmitAttempt godoc
// @Summary 提交答题
// @Description 每条答题只能成功提交一次，重复提交返回 409
// @Tags 答题
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "答题ID"
// @Param body body service.SubmitRequest true "作答"
// @Success 200 {object} util.Response{data=service.SubmitResult}
// @Failure 400 {object} util.Response
// @Failure 409 {object} util.Response "已提交"
// @Router /api/attempts/{id}/submit [post]
func (c *AttemptController) SubmitAttempt(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}
	var req service.SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.AttemptService.SubmitAttempt(p, id, req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, util.Response{
		Code:    http.StatusOK,
		Message: "Quiz submitted successfully",
		Data:    result,
	})
}

// GetResults godoc
// @Summary 答题结果
// @Description 仅已完成的答题可查看，包含每题的正确答案与得分
// @Tags 答题
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "答题ID"
// @Success 200 {object} util.Response{data=service.AttemptResults}
// @Router /api/attempts/{id}/results [get]
func (c *AttemptController) GetResults(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}
	id, ok := util.ParamID(ctx, "id")
	if !ok {
		return
	}

	results, err := c.AttemptService.GetAttemptResults(p, id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, results)
}

// ListMyAttempts godoc
// @Summary 我的答题历史
// @Tags 答题
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.AttemptSummary}
// @Router /api/attempts [get]
func (c *AttemptController) ListMyAttempts(ctx *gin.Context) {
	p, ok := principal(ctx)
	if !ok {
		return
	}

	attempts, err := c.AttemptService.ListMyAttempts(p)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}
