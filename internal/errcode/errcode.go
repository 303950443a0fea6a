package errcode

import "errors"

// 错误码约定：
// - 0：无错误
// - 4xxx：可恢复/告警类（导出完成但有资源缺失）
// - 5xxx：导出失败，按失败阶段区分
const (
	OK              = 0
	ResourceMissing = 4004
	SystemError     = 5000
	RenderFailed    = 5001
	StorageFailed   = 5002
)

// Error attaches a notification code to an underlying failure.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// Wrap 为错误附加错误码；err 为 nil 时返回 nil。
func Wrap(code int, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: err}
}

// Of returns the code carried by err, OK for nil and SystemError when none was attached.
func Of(err error) int {
	if err == nil {
		return OK
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return SystemError
}
