// validate.go — валидация входных DTO администратора через go-playground/validator.
// Имена полей в ошибках берутся из json-тегов.
package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// notBlankTag — строка не пустая после удаления пробелов.
const notBlankTag = "notblank"

// newValidator создаёт валидатор с json-именами полей и тегом notblank.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		return ok && strings.TrimSpace(s) != ""
	})
	return v
}

// validateStruct проверяет DTO и возвращает первую ошибку как *ValidationError.
func validateStruct(v *validator.Validate, dto any) error {
	err := v.Struct(dto)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fe := verrs[0]
	return &ValidationError{Field: fe.Field(), Message: fieldMessage(fe)}
}

// fieldMessage формирует сообщение для нарушенного правила.
func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", notBlankTag:
		return "обязательное поле"
	case "max":
		return fmt.Sprintf("не длиннее %s символов", fe.Param())
	case "gte":
		return fmt.Sprintf("должно быть не меньше %s", fe.Param())
	case "lte":
		return fmt.Sprintf("должно быть не больше %s", fe.Param())
	case "url":
		return "некорректный URL"
	case "email":
		return "некорректный email"
	default:
		return fmt.Sprintf("нарушено правило %s", fe.Tag())
	}
}
