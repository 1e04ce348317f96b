package controller

import (
	"errors"
	"io"
	"teacher_connect_backend/internal/service"
	"teacher_connect_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	AttemptService *service.AttemptService
}

func NewAttemptController(attemptService *service.AttemptService) *AttemptController {
	return &AttemptController{AttemptService: attemptService}
}

// AnswersRequest 答案列表；提交时省略 answers 则使用已保存的草稿
// swagger:model AnswersRequest
type AnswersRequest struct {
	Answers []service.AnswerInput `json:"answers" binding:"omitempty,dive"`
}

// bindAnswers 空请求体返回 nil
func bindAnswers(ctx *gin.Context) ([]service.AnswerInput, bool) {
	var req AnswersRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, true
		}
		util.BadRequest(ctx, err.Error())
		return nil, false
	}
	return req.Answers, true
}

// StartAttempt godoc
// @Summary 开始作答
// @Tags 作答
// @Produce  json
// @Param   id path string true "测试ID"
// @Success 201 {object} util.Response{data=model.AssessmentAttempt}
// @Failure 404 {object} util.Response "测试不存在或未发布"
// @Security ApiKeyAuth
// @Router /api/assessments/{id}/attempts [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.AttemptService.StartAttempt(ctx.Request.Context(), ctx.Param("id"), claims.UserID, claims.Name)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, attempt)
}

// ListMyAttempts godoc
// @Summary 我的作答记录
// @Tags 作答
// @Produce  json
// @Param   page query int false "页码"
// @Param   limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Security ApiKeyAuth
// @Router /api/attempts [get]
func (c *AttemptController) ListMyAttempts(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	page, limit := pageParams(ctx)
	list, total, err := c.AttemptService.ListStudentAttempts(ctx.Request.Context(), claims.UserID, page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Page(ctx, list, total, page, limit)
}

// GetAttempt godoc
// @Summary 作答详情
// @Description 学生只能查看自己的作答，教师只能查看自己测试下的作答，进行中时返回剩余秒数
// @Tags 作答
// @Produce  json
// @Param   id path string true "作答ID"
// @Success 200 {object} util.Response{data=service.AttemptDetail}
// @Failure 403 {object} util.Response
// @Failure 404 {object} util.Response
// @Security ApiKeyAuth
// @Router /api/attempts/{id} [get]
func (c *AttemptController) GetAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	detail, err := c.AttemptService.GetAttempt(ctx.Request.Context(), ctx.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// SaveAnswers godoc
// @Summary 保存草稿答案
// @Tags 作答
// @Accept  json
// @Produce  json
// @Param   id path string true "作答ID"
// @Param   body body AnswersRequest true "答案"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response "作答已结束"
// @Security ApiKeyAuth
// @Router /api/attempts/{id}/answers [put]
func (c *AttemptController) SaveAnswers(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	answers, ok := bindAnswers(ctx)
	if !ok {
		return
	}
	if err := c.AttemptService.SaveAnswers(ctx.Request.Context(), ctx.Param("id"), claims.UserID, answers); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"saved": len(answers)})
}

// SubmitAttempt godoc
// @Summary 提交作答
// @Description 评分、计算积分并结束作答，重复提交返回 409
// @Tags 作答
// @Accept  json
// @Produce  json
// @Param   id path string true "作答ID"
// @Param   body body AnswersRequest false "答案"
// @Success 200 {object} util.Response{data=model.AssessmentAttempt}
// @Failure 400 {object} util.Response "答案不合法"
// @Failure 409 {object} util.Response "作答已结束"
// @Security ApiKeyAuth
// @Router /api/attempts/{id}/submit [post]
func (c *AttemptController) SubmitAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	answers, ok := bindAnswers(ctx)
	if !ok {
		return
	}
	attempt, err := c.AttemptService.SubmitAttempt(ctx.Request.Context(), ctx.Param("id"), claims.UserID, answers)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// AbandonAttempt godoc
// @Summary 放弃作答
// @Tags 作答
// @Produce  json
// @Param   id path string true "作答ID"
// @Success 200 {object} util.Response{data=model.AssessmentAttempt}
// @Failure 409 {object} util.Response "作答已结束"
// @Security ApiKeyAuth
// @Router /api/attempts/{id}/abandon [post]
func (c *AttemptController) AbandonAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	attempt, err := c.AttemptService.AbandonAttempt(ctx.Request.Context(), ctx.Param("id"), claims.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}
