package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// JWT и токены
	ErrInvalidSigningMethod = fmt.Errorf("неверный метод подписи токена")
	ErrInvalidToken         = fmt.Errorf("недопустимый токен")
	ErrTokenExpired         = fmt.Errorf("срок действия токена истёк")

	// Авторизация
	ErrEmptyAuthHeader   = fmt.Errorf("заголовок авторизации отсутствует")
	ErrInvalidAuthHeader = fmt.Errorf("неверный формат заголовка авторизации")
	ErrUnauthorized      = fmt.Errorf("неавторизован")
	ErrForbidden         = fmt.Errorf("доступ запрещён")

	// Синхронизация
	ErrSyncInProgress         = fmt.Errorf("синхронизация уже выполняется")
	ErrMemoryBudgetExceeded   = fmt.Errorf("превышен лимит памяти для синхронизации")
	ErrJobTimeout             = fmt.Errorf("превышено время выполнения синхронизации")
	ErrNothingCaptured        = fmt.Errorf("портал не вернул ни одного сотрудника")
	ErrStatusNotRecorded      = fmt.Errorf("результат синхронизации ещё не записан")
	ErrUnsupportedStoreDriver = fmt.Errorf("неподдерживаемый драйвер хранилища")

	// Общие
	ErrNotFound   = fmt.Errorf("запись не найдена")
	ErrBadRequest = fmt.Errorf("неверный запрос")
)

// Этапы сессии портала. Используются в SessionError и в логах.
const (
	StageLaunch      = "launch"
	StageLoginPage   = "login_page"
	StageLoginForm   = "login_form"
	StageCredentials = "credentials"
	StageSubmit      = "submit"
	StageNavigate    = "navigate"
	StageSettle      = "settle"
	StageReconcile   = "reconcile"
	StageExport      = "export"
)

// SessionError - сбой при установке или использовании сессии браузера.
type SessionError struct {
	Stage string
	Err   error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("ошибка сессии портала на этапе %s: %v", e.Stage, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

func NewSessionError(stage string, err error) error {
	return &SessionError{Stage: stage, Err: err}
}

// ReconciliationWriteError - не удалось закоммитить пакет записей.
// Уже закоммиченные пакеты остаются применёнными.
type ReconciliationWriteError struct {
	BatchIndex int
	IDs        []string
	Err        error
}

func (e *ReconciliationWriteError) Error() string {
	return fmt.Sprintf("ошибка записи пакета #%d (%d записей: %s): %v",
		e.BatchIndex, len(e.IDs), strings.Join(e.IDs, ","), e.Err)
}

func (e *ReconciliationWriteError) Unwrap() error { return e.Err }

// StageOf возвращает этап, на котором произошла ошибка сессии, или fallback.
func StageOf(err error, fallback string) string {
	var sessErr *SessionError
	if errors.As(err, &sessErr) {
		return sessErr.Stage
	}
	return fallback
}

// Кастомные типы ошибок
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string { return e.Message }

func NewInvalidInputError(format string, args ...interface{}) error {
	return &InvalidInputError{Message: fmt.Sprintf(format, args...)}
}
