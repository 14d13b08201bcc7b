package errors

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode 错误码类型
type ErrorCode int

// 错误码定义（按模块分组）
const (
	// 通用错误 (1000-1999)
	ErrUnknown          ErrorCode = 1000
	ErrInvalidParam     ErrorCode = 1001
	ErrNotFound         ErrorCode = 1002
	ErrAlreadyExists    ErrorCode = 1003
	ErrPermissionDenied ErrorCode = 1004
	ErrTimeout          ErrorCode = 1005
	ErrCanceled         ErrorCode = 1006

	// 对局校验错误 (2000-2999)
	// 前置条件不满足时返回，绝不产生部分写入
	ErrMatchNotFound       ErrorCode = 2000
	ErrMatchNotWaiting     ErrorCode = 2001
	ErrMatchNotPlaying     ErrorCode = 2002
	ErrMatchFinished       ErrorCode = 2003
	ErrMatchFull           ErrorCode = 2004
	ErrAlreadyJoined       ErrorCode = 2005
	ErrNotInMatch          ErrorCode = 2006
	ErrNotCreator          ErrorCode = 2007
	ErrNotEnoughPlayers    ErrorCode = 2008
	ErrNotYourTurn         ErrorCode = 2009
	ErrWrongPhase          ErrorCode = 2010
	ErrInvalidCardIndex    ErrorCode = 2011
	ErrNoCurrentCard       ErrorCode = 2012
	ErrNotCardInitiator    ErrorCode = 2013
	ErrIsCardInitiator     ErrorCode = 2014
	ErrCardAlreadyResolved ErrorCode = 2015
	ErrMatchNotIntro       ErrorCode = 2016

	// 规则层错误 (3000-3999)
	// 写入形状不符合任何合法迁移时由规则层拦截
	ErrIllegalWriteShape  ErrorCode = 3000
	ErrFieldNotAllowed    ErrorCode = 3001
	ErrIllegalMultiplier  ErrorCode = 3002
	ErrIllegalTurnAdvance ErrorCode = 3003
	ErrIllegalStatusJump  ErrorCode = 3004
	ErrDeckModified       ErrorCode = 3005

	// 资源错误 (4000-4999)
	ErrInsufficientPool     ErrorCode = 4000
	ErrDistributionMismatch ErrorCode = 4001
	ErrInsufficientDeck     ErrorCode = 4002
	ErrPoolFetchFailed      ErrorCode = 4003

	// 数据库错误 (5000-5999)
	ErrDatabaseConnect ErrorCode = 5000
	ErrDatabaseQuery   ErrorCode = 5001
	ErrDatabaseInsert  ErrorCode = 5002
	ErrDatabaseUpdate  ErrorCode = 5003
	ErrVersionConflict ErrorCode = 5004
	ErrTransaction     ErrorCode = 5005

	// 配置错误 (6000-6999)
	ErrConfigLoad     ErrorCode = 6000
	ErrConfigParse    ErrorCode = 6001
	ErrConfigValidate ErrorCode = 6002

	// 安全错误 (7000-7999)
	ErrAuthentication ErrorCode = 7000
	ErrTokenExpired   ErrorCode = 7001
	ErrTokenInvalid   ErrorCode = 7002
)

// 错误码消息映射
var errorMessages = map[ErrorCode]string{
	// 通用错误
	ErrUnknown:          "未知错误",
	ErrInvalidParam:     "无效的参数",
	ErrNotFound:         "资源未找到",
	ErrAlreadyExists:    "资源已存在",
	ErrPermissionDenied: "权限不足",
	ErrTimeout:          "操作超时",
	ErrCanceled:         "操作已取消",

	// 对局校验错误
	ErrMatchNotFound:       "对局不存在",
	ErrMatchNotWaiting:     "对局不在等待阶段",
	ErrMatchNotPlaying:     "对局未开始",
	ErrMatchFinished:       "对局已结束",
	ErrMatchFull:           "对局人数已满",
	ErrAlreadyJoined:       "已在对局中",
	ErrNotInMatch:          "玩家不在对局中",
	ErrNotCreator:          "只有创建者可以执行此操作",
	ErrNotEnoughPlayers:    "对局人数不足",
	ErrNotYourTurn:         "未轮到该玩家行动",
	ErrWrongPhase:          "当前回合阶段不允许此操作",
	ErrInvalidCardIndex:    "无效的卡牌序号",
	ErrNoCurrentCard:       "没有待决定的卡牌",
	ErrNotCardInitiator:    "不是该卡牌的选择者",
	ErrIsCardInitiator:     "卡牌选择者不能执行对手操作",
	ErrCardAlreadyResolved: "卡牌已被结算",
	ErrMatchNotIntro:       "对局不在开场阶段",

	// 规则层错误
	ErrIllegalWriteShape:  "写入不符合任何合法迁移",
	ErrFieldNotAllowed:    "禁止修改该字段",
	ErrIllegalMultiplier:  "非法的倍率迁移",
	ErrIllegalTurnAdvance: "非法的回合推进",
	ErrIllegalStatusJump:  "非法的对局状态跳转",
	ErrDeckModified:       "牌堆生成后不可修改",

	// 资源错误
	ErrInsufficientPool:     "记忆文本池数量不足",
	ErrDistributionMismatch: "真伪分布与牌堆总数不匹配",
	ErrInsufficientDeck:     "牌堆数量不足以初始化牌桌",
	ErrPoolFetchFailed:      "获取记忆文本池失败",

	// 数据库错误
	ErrDatabaseConnect: "数据库连接失败",
	ErrDatabaseQuery:   "数据库查询失败",
	ErrDatabaseInsert:  "数据库插入失败",
	ErrDatabaseUpdate:  "数据库更新失败",
	ErrVersionConflict: "并发写入冲突，请重试",
	ErrTransaction:     "事务处理失败",

	// 配置错误
	ErrConfigLoad:     "配置加载失败",
	ErrConfigParse:    "配置解析失败",
	ErrConfigValidate: "配置验证失败",

	// 安全错误
	ErrAuthentication: "认证失败",
	ErrTokenExpired:   "令牌已过期",
	ErrTokenInvalid:   "无效的令牌",
}

// AppError 应用错误结构
type AppError struct {
	Code    ErrorCode    `json:"code"`              // 错误码
	Message string       `json:"message"`           // 错误消息
	Details string       `json:"details"`           // 详细信息
	Cause   error        `json:"-"`                 // 原始错误
	Stack   []StackFrame `json:"stack,omitempty"`   // 调用栈
}

// StackFrame 调用栈帧
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause 添加原因错误
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	if cause != nil && e.Details == "" {
		e.Details = cause.Error()
	}
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, details ...string) *AppError {
	message, ok := errorMessages[code]
	if !ok {
		message = errorMessages[ErrUnknown]
	}

	err := &AppError{
		Code:    code,
		Message: message,
	}

	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}

	// 捕获调用栈
	err.captureStack(2)

	return err
}

// Newf 创建格式化的应用错误
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	details := fmt.Sprintf(format, args...)
	return New(code, details)
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}

	// 如果已经是AppError，保留原始错误码
	if appErr, ok := err.(*AppError); ok {
		if len(details) > 0 {
			appErr.Details = strings.Join(details, "; ") + "; " + appErr.Details
		}
		return appErr
	}

	appErr := New(code, details...)
	appErr.Cause = err
	if appErr.Details == "" {
		appErr.Details = err.Error()
	}

	return appErr
}

// Wrapf 包装格式化错误
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	details := fmt.Sprintf(format, args...)
	return Wrap(err, code, details)
}

// Is 判断错误是否为指定错误码
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	return ok && appErr.Code == code
}

// GetCode 获取错误码
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}

	return ErrUnknown
}

// captureStack 捕获调用栈
func (e *AppError) captureStack(skip int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)

	if n > 0 {
		frames := runtime.CallersFrames(pcs[:n])
		for {
			frame, more := frames.Next()

			// 跳过runtime和本包的调用
			if strings.Contains(frame.Function, "runtime.") ||
				strings.Contains(frame.Function, "github.com/wfunc/memory-duel/internal/errors") {
				if !more {
					break
				}
				continue
			}

			e.Stack = append(e.Stack, StackFrame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})

			if !more {
				break
			}

			// 只保留前10个栈帧
			if len(e.Stack) >= 10 {
				break
			}
		}
	}
}

// GetStack 获取格式化的调用栈
func (e *AppError) GetStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, frame := range e.Stack {
		builder.WriteString(fmt.Sprintf("%d. %s\n   %s:%d\n",
			i+1, frame.Function, frame.File, frame.Line))
	}

	return builder.String()
}

// HTTPStatus 返回对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	switch {
	case e.Code == ErrMatchNotFound || e.Code == ErrNotFound:
		return 404 // Not Found
	case e.Code == ErrNotCreator || e.Code == ErrPermissionDenied:
		return 403 // Forbidden
	case e.Code >= 2001 && e.Code <= 2999:
		return 400 // Bad Request（前置条件校验失败）
	case e.Code >= 3000 && e.Code <= 3999:
		return 403 // Forbidden（规则层拦截）
	case e.Code == ErrVersionConflict:
		return 409 // Conflict（乐观锁冲突）
	case e.Code >= 7000 && e.Code <= 7999:
		return 401 // Unauthorized
	case e.Code == ErrInvalidParam:
		return 400 // Bad Request
	case e.Code >= 5000 && e.Code <= 5999:
		return 503 // Service Unavailable
	default:
		return 500 // Internal Server Error
	}
}

// IsRetryable 判断错误是否可重试
// 并发冲突可在读取新状态后重试，校验错误不可以
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	code := GetCode(err)
	switch code {
	case ErrVersionConflict,
		ErrTimeout,
		ErrDatabaseConnect:
		return true
	default:
		return false
	}
}

// IsValidation 判断是否为对局校验错误（含规则层拦截）
func IsValidation(err error) bool {
	code := GetCode(err)
	return code >= 2000 && code <= 3999
}

// ErrorResponse API错误响应结构
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     *AppError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(err *AppError, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     err,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}
