package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		code   string
	}{
		{"validation", func(w http.ResponseWriter) { ValidationError(w, "m") }, http.StatusBadRequest, CodeValidationError},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "m") }, http.StatusNotFound, CodeNotFound},
		{"unauthorized", func(w http.ResponseWriter) { Unauthorized(w, "m") }, http.StatusUnauthorized, CodeUnauthorized},
		{"forbidden", func(w http.ResponseWriter) { Forbidden(w, "m") }, http.StatusForbidden, CodeForbidden},
		{"conflict default", func(w http.ResponseWriter) { Conflict(w, "", "m") }, http.StatusConflict, CodeConflict},
		{"conflict gate", func(w http.ResponseWriter) { Conflict(w, "GATE_NOT_READY", "m") }, http.StatusConflict, "GATE_NOT_READY"},
		{"unavailable", func(w http.ResponseWriter) { ServiceUnavailable(w, "m") }, http.StatusServiceUnavailable, CodeCatalogUnavailable},
		{"too large", func(w http.ResponseWriter) { PayloadTooLarge(w, "m") }, http.StatusRequestEntityTooLarge, CodePayloadTooLarge},
		{"rate", func(w http.ResponseWriter) { TooManyRequests(w, "m") }, http.StatusTooManyRequests, CodeTooManyRequests},
		{"internal", func(w http.ResponseWriter) { InternalError(w, "m") }, http.StatusInternalServerError, CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)

			if rec.Code != tt.status {
				t.Errorf("status = %d, ожидался %d", rec.Code, tt.status)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var body envelope
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("невалидный JSON: %v", err)
			}
			if body.Error.Code != tt.code || body.Error.Message != "m" {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestInvalidField(t *testing.T) {
	rec := httptest.NewRecorder()
	InvalidField(rec, "year", "обязательное поле")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var body envelope
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("невалидный JSON: %v", err)
	}
	if body.Error.Field != "year" || body.Error.Code != CodeValidationError {
		t.Errorf("body = %+v", body)
	}
}

func TestWrite_UnknownCode(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, "SOMETHING_NEW", "m")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, ожидался 500", rec.Code)
	}
}

func TestWriteError_OmitsEmptyField(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusUnsupportedMediaType, "UNSUPPORTED_FILE", "m")
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), `"field"`) {
		t.Errorf("пустое поле field попало в ответ: %s", rec.Body.String())
	}
}
