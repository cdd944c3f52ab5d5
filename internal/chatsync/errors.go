package chatsync

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrValidation 內容為空或過長，在本地直接拒絕且不重試
	ErrValidation = errors.New("validation error")
	// ErrUnauthorized 憑證無效或過期，需要重新驗證
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStoreUnavailable 暫時性的傳輸錯誤
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrCancelled 被取代的過期請求，不視為錯誤
	ErrCancelled = errors.New("cancelled")
	// ErrNotReady 尚未取得憑證
	ErrNotReady = errors.New("session not ready")
	// ErrDuplicatePending 相同內容的訊息仍在等待確認
	ErrDuplicatePending = errors.New("identical message already pending")
	// ErrUnknownMessage Retry 找不到對應的失敗訊息
	ErrUnknownMessage = errors.New("unknown message")
	// ErrNoScope 尚未選擇任何頻道
	ErrNoScope = errors.New("no scope selected")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsCancelled 判斷錯誤是否只是請求被取消
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// Retryable 只有暫時性錯誤允許使用者重試
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
