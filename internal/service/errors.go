// errors.go — ошибки бизнес-логики сервисного слоя.
// LoadError, ValidationError, UploadError и LinkFormatError обрабатываются
// в точке возникновения: страница остаётся работоспособной, повторы — только вручную.
package service

import (
	"errors"
	"fmt"

	"github.com/shivnayan54/studyvibe/internal/domain/model"
)

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — ресурс уже существует")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrInvalidCredentials — неверный email или пароль.
	ErrInvalidCredentials = errors.New("неверный email или пароль")
	// ErrAdminDisabled — вход администратора не настроен.
	ErrAdminDisabled = errors.New("вход администратора не настроен")
)

// LoadError — коллекцию не удалось загрузить (хранилище недоступно,
// не инициализировано или запрос отменён). Вызывающий показывает пустое состояние.
type LoadError struct {
	Collection model.Collection
	Err        error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("загрузка коллекции %s: %v", e.Collection, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ValidationError — обязательное поле отсутствует или некорректно.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap позволяет проверять ValidationError через errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// UploadError — ошибка записи в blob-хранилище с HTTP-кодом.
type UploadError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LinkFormatError — ссылка не соответствует ни одной из распознаваемых форм.
type LinkFormatError struct {
	Link string
}

func (e *LinkFormatError) Error() string {
	return fmt.Sprintf("нераспознанный формат ссылки Google Drive: %q", e.Link)
}

// Unwrap относит LinkFormatError к ошибкам валидации.
func (e *LinkFormatError) Unwrap() error {
	return ErrValidation
}
