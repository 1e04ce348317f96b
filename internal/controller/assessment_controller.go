package controller

import (
	"strconv"
	"teacher_connect_backend/internal/model"
	"teacher_connect_backend/internal/repository"
	"teacher_connect_backend/internal/service"
	"teacher_connect_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AssessmentController struct {
	AssessmentService *service.AssessmentService
	AttemptService    *service.AttemptService
}

func NewAssessmentController(assessmentService *service.AssessmentService, attemptService *service.AttemptService) *AssessmentController {
	return &AssessmentController{
		AssessmentService: assessmentService,
		AttemptService:    attemptService,
	}
}

func pageParams(ctx *gin.Context) (int, int) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", strconv.Itoa(util.DefaultPageSize)))
	return util.Pagination(page, limit)
}

// ownedAssessment 教师只能访问自己创建的测试，管理员不受限制
func (c *AssessmentController) ownedAssessment(ctx *gin.Context) (*model.Assessment, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return nil, false
	}

	a, err := c.AssessmentService.GetAssessment(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return nil, false
	}
	if claims.Role != model.Admin && a.TeacherID != claims.UserID {
		util.HandleError(ctx, util.ErrPermissionDenied)
		return nil, false
	}
	return a, true
}

// CreateAssessment godoc
// @Summary 创建测试
// @Description 教师创建测试及题目，总分由题目分值求和
// @Tags 测试管理
// @Accept  json
// @Produce  json
// @Param   body body service.AssessmentRequest true "测试内容"
// @Success 201 {object} util.Response{data=model.Assessment}
// @Failure 400 {object} util.Response "参数错误"
// @Security ApiKeyAuth
// @Router /api/teacher/assessments [post]
func (c *AssessmentController) CreateAssessment(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.AssessmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	a, err := c.AssessmentService.CreateAssessment(ctx.Request.Context(), claims.UserID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, a)
}

// ListTeacherAssessments godoc
// @Summary 教师的测试列表
// @Tags 测试管理
// @Produce  json
// @Param   subject query string false "科目"
// @Param   grade query string false "年级"
// @Param   page query int false "页码"
// @Param   limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Security ApiKeyAuth
// @Router /api/teacher/assessments [get]
func (c *AssessmentController) ListTeacherAssessments(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	filter := repository.AssessmentFilter{
		Subject: ctx.Query("subject"),
		Grade:   ctx.Query("grade"),
	}
	if claims.Role != model.Admin {
		filter.TeacherID = claims.UserID
	}

	page, limit := pageParams(ctx)
	list, total, err := c.AssessmentService.ListAssessments(ctx.Request.Context(), filter, page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Page(ctx, list, total, page, limit)
}

// GetTeacherAssessment godoc
// @Summary 测试详情（含答案）
// @Tags 测试管理
// @Produce  json
// @Param   id path string true "测试ID"
// @Success 200 {object} util.Response{data=model.Assessment}
// @Failure 404 {object} util.Response
// @Security ApiKeyAuth
// @Router /api/teacher/assessments/{id} [get]
func (c *AssessmentController) GetTeacherAssessment(ctx *gin.Context) {
	a, ok := c.ownedAssessment(ctx)
	if !ok {
		return
	}
	util.Success(ctx, a)
}

// ListAssessmentAttempts godoc
// @Summary 测试的作答记录
// @Tags 测试管理
// @Produce  json
// @Param   id path string true "测试ID"
// @Param   status query string false "in_progress / completed / abandoned"
// @Param   page query int false "页码"
// @Param   limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Security ApiKeyAuth
// @Router /api/teacher/assessments/{id}/attempts [get]
func (c *AssessmentController) ListAssessmentAttempts(ctx *gin.Context) {
	a, ok := c.ownedAssessment(ctx)
	if !ok {
		return
	}
	page, limit := pageParams(ctx)
	status := model.AttemptStatus(ctx.Query("status"))

	list, total, err := c.AttemptService.ListAssessmentAttempts(ctx.Request.Context(), a.ID, status, page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Page(ctx, list, total, page, limit)
}

// ExportResults godoc
// @Summary 导出测试成绩
// @Description 将已完成的作答导出为 CSV，返回下载地址
// @Tags 测试管理
// @Produce  json
// @Param   id path string true "测试ID"
// @Success 200 {object} util.Response{data=object}
// @Security ApiKeyAuth
// @Router /api/teacher/assessments/{id}/export [post]
func (c *AssessmentController) ExportResults(ctx *gin.Context) {
	a, ok := c.ownedAssessment(ctx)
	if !ok {
		return
	}
	url, err := c.AssessmentService.ExportResults(ctx.Request.Context(), a.ID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"url": url})
}

// ListPublishedAssessments godoc
// @Summary 已发布的测试列表
// @Tags 测试
// @Produce  json
// @Param   subject query string false "科目"
// @Param   grade query string false "年级"
// @Param   page query int false "页码"
// @Param   limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Security ApiKeyAuth
// @Router /api/assessments [get]
func (c *AssessmentController) ListPublishedAssessments(ctx *gin.Context) {
	filter := repository.AssessmentFilter{
		Subject:       ctx.Query("subject"),
		Grade:         ctx.Query("grade"),
		PublishedOnly: true,
	}
	page, limit := pageParams(ctx)
	list, total, err := c.AssessmentService.ListAssessments(ctx.Request.Context(), filter, page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	views := make([]gin.H, 0, len(list))
	for _, a := range list {
		views = append(views, gin.H{
			"id":              a.ID,
			"title":           a.Title,
			"subject":         a.Subject,
			"grade":           a.Grade,
			"durationMinutes": a.DurationMinutes,
			"totalPoints":     a.TotalPoints,
			"difficulty":      a.Difficulty,
			"attempts":        a.AttemptCount,
			"averageScore":    a.AverageScore,
		})
	}
	util.Page(ctx, views, total, page, limit)
}

// GetStudentAssessment godoc
// @Summary 学生查看测试（不含答案）
// @Tags 测试
// @Produce  json
// @Param   id path string true "测试ID"
// @Success 200 {object} util.Response{data=service.StudentAssessmentView}
// @Failure 404 {object} util.Response
// @Security ApiKeyAuth
// @Router /api/assessments/{id} [get]
func (c *AssessmentController) GetStudentAssessment(ctx *gin.Context) {
	view, err := c.AssessmentService.GetStudentView(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}
