package util

import "errors"

var (
	ErrUserNotFound       = errors.New("用户不存在")
	ErrEmailRegistered    = errors.New("该邮箱已被注册")
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrPermissionDenied   = errors.New("无权访问该资源")
	ErrAssessmentNotFound = errors.New("测试不存在")
	ErrAttemptNotFound    = errors.New("作答不存在")
	ErrAttemptClosed      = errors.New("作答已提交或已放弃")
	ErrInvalidAssessment  = errors.New("测试内容不合法")
	ErrInvalidAnswers     = errors.New("答案不合法")
	ErrInvalidCredit      = errors.New("积分流水不合法")
	ErrDuplicateCredit    = errors.New("该引用的积分已发放")
)
