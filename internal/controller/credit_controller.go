package controller

import (
	"strconv"
	"teacher_connect_backend/internal/service"
	"teacher_connect_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CreditController struct {
	CreditService *service.CreditService
}

func NewCreditController(creditService *service.CreditService) *CreditController {
	return &CreditController{CreditService: creditService}
}

// AwardCredits godoc
// @Summary 发放积分
// @Description 教师为学生追加一条积分流水，同一类型和引用只记一次
// @Tags 积分
// @Accept  json
// @Produce  json
// @Param   body body service.AwardRequest true "积分流水"
// @Success 201 {object} util.Response{data=model.CreditTransaction}
// @Failure 400 {object} util.Response
// @Failure 409 {object} util.Response "重复发放"
// @Security ApiKeyAuth
// @Router /api/teacher/credits [post]
func (c *CreditController) AwardCredits(ctx *gin.Context) {
	var req service.AwardRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	txn, err := c.CreditService.Award(ctx.Request.Context(), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, txn)
}

// GetBalance godoc
// @Summary 积分余额
// @Description 返回余额和排行榜名次（没有积分时名次为 0）
// @Tags 积分
// @Produce  json
// @Success 200 {object} util.Response{data=object}
// @Security ApiKeyAuth
// @Router /api/credits/balance [get]
func (c *CreditController) GetBalance(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	balance, err := c.CreditService.Balance(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	rank, err := c.CreditService.Rank(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"studentId": claims.UserID, "balance": balance, "rank": rank})
}

// ListTransactions godoc
// @Summary 积分流水
// @Tags 积分
// @Produce  json
// @Param   page query int false "页码"
// @Param   limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Security ApiKeyAuth
// @Router /api/credits/transactions [get]
func (c *CreditController) ListTransactions(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	page, limit := pageParams(ctx)
	list, total, err := c.CreditService.History(ctx.Request.Context(), claims.UserID, page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Page(ctx, list, total, page, limit)
}

// GetLeaderboard godoc
// @Summary 积分排行榜
// @Tags 积分
// @Produce  json
// @Param   limit query int false "数量"
// @Success 200 {object} util.Response{data=[]service.LeaderboardEntry}
// @Security ApiKeyAuth
// @Router /api/credits/leaderboard [get]
func (c *CreditController) GetLeaderboard(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))
	entries, err := c.CreditService.Leaderboard(ctx.Request.Context(), limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, entries)
}
