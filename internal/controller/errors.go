package controller

import (
	"errors"
	"net/http"

	"quiz_master_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// errorStatus 业务错误到 HTTP 状态码的映射，按顺序匹配
var errorStatus = []struct {
	err    error
	status int
}{
	{util.ErrAttemptNotFound, http.StatusNotFound},
	{util.ErrQuizNotFound, http.StatusNotFound},
	{util.ErrUserNotFound, http.StatusNotFound},
	{util.ErrNotFound, http.StatusNotFound},
	{util.ErrPermissionDenied, http.StatusForbidden},
	{util.ErrInvalidCredential, http.StatusUnauthorized},
	{util.ErrEmailRegistered, http.StatusConflict},
	{util.ErrNameTaken, http.StatusConflict},
	{util.ErrAlreadySubmitted, http.StatusConflict},
	{util.ErrQuizInactive, http.StatusBadRequest},
	{util.ErrQuizUnavailable, http.StatusBadRequest},
	{util.ErrNoQuestions, http.StatusBadRequest},
	{util.ErrMissingAnswers, http.StatusBadRequest},
	{util.ErrNotInProgress, http.StatusBadRequest},
	{util.ErrNotCompleted, http.StatusBadRequest},
	{util.ErrInvalidInput, http.StatusBadRequest},
}

// respondError 写入错误响应，未识别的错误记录日志并返回 500
func respondError(ctx *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			util.Error(ctx, e.status, err.Error())
			return
		}
	}
	util.LogInternalError(ctx, err)
}

func principal(ctx *gin.Context) (util.Principal, bool) {
	p, ok := util.GetPrincipal(ctx)
	if !ok {
		util.Unauthorized(ctx)
	}
	return p, ok
}
