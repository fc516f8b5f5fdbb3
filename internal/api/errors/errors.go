// Пакет errors — ответы об ошибках API StudyVibe в едином конверте
// {"error": {"code": "...", "message": "...", "field": "..."}}.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок из openapi.yaml. Коды шлюза (GATE_*) приходят из домена
// и передаются через Conflict как есть.
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeConflict           = "CONFLICT"
	CodeCatalogUnavailable = "CATALOG_UNAVAILABLE"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeInternalError      = "INTERNAL_ERROR"
)

var statusByCode = map[string]int{
	CodeValidationError:    http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeUnauthorized:       http.StatusUnauthorized,
	CodeForbidden:          http.StatusForbidden,
	CodeConflict:           http.StatusConflict,
	CodeCatalogUnavailable: http.StatusServiceUnavailable,
	CodePayloadTooLarge:    http.StatusRequestEntityTooLarge,
	CodeTooManyRequests:    http.StatusTooManyRequests,
	CodeInternalError:      http.StatusInternalServerError,
}

type envelope struct {
	Error detail `json:"error"`
}

type detail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func write(w http.ResponseWriter, status int, d detail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: d})
}

// WriteError пишет ошибку с явным статусом (например, ошибки загрузки файла).
func WriteError(w http.ResponseWriter, status int, code, message string) {
	write(w, status, detail{Code: code, Message: message})
}

// Write пишет ошибку со статусом, соответствующим коду; неизвестный код — 500.
func Write(w http.ResponseWriter, code, message string) {
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	write(w, status, detail{Code: code, Message: message})
}

func ValidationError(w http.ResponseWriter, message string) {
	Write(w, CodeValidationError, message)
}

// InvalidField — 400 с указанием поля формы.
func InvalidField(w http.ResponseWriter, field, message string) {
	write(w, http.StatusBadRequest, detail{Code: CodeValidationError, Message: message, Field: field})
}

func NotFound(w http.ResponseWriter, message string) {
	Write(w, CodeNotFound, message)
}

func Unauthorized(w http.ResponseWriter, message string) {
	Write(w, CodeUnauthorized, message)
}

func Forbidden(w http.ResponseWriter, message string) {
	Write(w, CodeForbidden, message)
}

// Conflict — 409; пустой code заменяется на CONFLICT.
func Conflict(w http.ResponseWriter, code, message string) {
	if code == "" {
		code = CodeConflict
	}
	write(w, http.StatusConflict, detail{Code: code, Message: message})
}

// ServiceUnavailable — каталог не загрузился.
func ServiceUnavailable(w http.ResponseWriter, message string) {
	Write(w, CodeCatalogUnavailable, message)
}

func PayloadTooLarge(w http.ResponseWriter, message string) {
	Write(w, CodePayloadTooLarge, message)
}

func TooManyRequests(w http.ResponseWriter, message string) {
	Write(w, CodeTooManyRequests, message)
}

func InternalError(w http.ResponseWriter, message string) {
	Write(w, CodeInternalError, message)
}
