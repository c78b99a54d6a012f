package models

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteUnavailable - удаленное хранилище недоступно (сеть, таймаут)
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	// ErrWriteRejected - удаленное хранилище отклонило запись
	ErrWriteRejected = errors.New("write rejected by remote store")
	// ErrResolutionProofRequired - для Resolved нужно фото-подтверждение
	ErrResolutionProofRequired = errors.New("resolution proof image required")
	// ErrInvalidTransition - переход запрещен таблицей переходов
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUploadFailed - сбой хранилища изображений
	ErrUploadFailed = errors.New("image upload failed")
	// ErrInvalidMerge - слияние образует цепочку или затрагивает закрытый инцидент
	ErrInvalidMerge = errors.New("invalid merge")

	ErrNotFound     = errors.New("incident not found")
	ErrForbidden    = errors.New("operation not permitted")
	ErrInvalidInput = errors.New("invalid input")
)

// TransitionError объясняет, какое правило перехода нарушено
type TransitionError struct {
	From   Status
	To     Status
	Reason string
	Err    error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s -> %s: %s: %v", e.From, e.To, e.Reason, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}
