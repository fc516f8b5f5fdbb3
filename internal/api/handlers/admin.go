// admin.go — endpoints администратора: вход, создание, редактирование,
// удаление записей и статистика. Доступ к /api/v1/admin/* — JWT с ролью admin.
package handlers

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	apierrors "github.com/shivnayan54/studyvibe/internal/api/errors"
	"github.com/shivnayan54/studyvibe/internal/api/middleware"
	"github.com/shivnayan54/studyvibe/internal/service"
)

const (
	// multipartOverhead — запас на заголовки и поля формы сверх размера файла.
	multipartOverhead = 1 << 20
	// multipartMemory — часть формы, хранимая в памяти (остальное — во временных файлах).
	multipartMemory = 8 << 20
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Login — POST /api/v1/auth/login.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		apierrors.ValidationError(w, "Поля email и password обязательны")
		return
	}

	token, err := h.svc.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   token.ExpiresAt,
	})
}

// CreateRecord — POST /api/v1/admin/{collection}.
// multipart/form-data с полем file (PDF) или JSON с gdrive_link.
func (h *APIHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionParam(w, r)
	if !ok {
		return
	}

	var (
		in   service.RecordInput
		file *service.FileUpload
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, h.svc.MaxUploadBytes+multipartOverhead)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				apierrors.PayloadTooLarge(w, "Файл превышает допустимый размер")
				return
			}
			apierrors.ValidationError(w, "Ошибка разбора multipart: "+err.Error())
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		var err error
		in, err = formRecordInput(r)
		if err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}

		f, header, err := r.FormFile("file")
		switch {
		case err == nil:
			defer f.Close()
			file = &service.FileUpload{Filename: header.Filename, Size: header.Size, Content: f}
		case errors.Is(err, http.ErrMissingFile):
			// допустимо при переданной gdrive_link
		default:
			apierrors.ValidationError(w, "Поле 'file' не прочитано: "+err.Error())
			return
		}
	case "application/json", "":
		if !decodeJSON(w, r, &in) {
			return
		}
	default:
		apierrors.ValidationError(w, "Неподдерживаемый Content-Type: "+mediaType)
		return
	}

	subject := middleware.SubjectFromContext(r.Context())
	rec, err := h.svc.Admin.Create(r.Context(), collection, in, file, nil)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("Запись создана",
		slog.String("collection", string(collection)),
		slog.String("id", rec.ID.String()),
		slog.String("by", subject),
	)
	writeJSON(w, http.StatusCreated, domainToAPIRecord(*rec))
}

// formRecordInput собирает RecordInput из полей multipart-формы.
func formRecordInput(r *http.Request) (service.RecordInput, error) {
	in := service.RecordInput{
		Board:      r.FormValue("board"),
		Class:      r.FormValue("class"),
		Subject:    r.FormValue("subject"),
		Title:      r.FormValue("title"),
		GDriveLink: r.FormValue("gdrive_link"),
	}
	if raw := strings.TrimSpace(r.FormValue("year")); raw != "" {
		if err := runtime.BindStringToObject(raw, &in.Year); err != nil {
			return in, &service.ValidationError{Field: "year", Message: "должно быть целым числом"}
		}
	}
	return in, nil
}

// UpdateRecord — PATCH /api/v1/admin/{collection}/{id}.
func (h *APIHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionParam(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var in service.RecordInput
	if !decodeJSON(w, r, &in) {
		return
	}
	rec, err := h.svc.Admin.Update(r.Context(), collection, id, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domainToAPIRecord(*rec))
}

// DeleteRecord — DELETE /api/v1/admin/{collection}/{id}.
func (h *APIHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionParam(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.Admin.Delete(r.Context(), collection, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("Запись удалена",
		slog.String("collection", string(collection)),
		slog.String("id", id.String()),
		slog.String("by", middleware.SubjectFromContext(r.Context())),
	)
	w.WriteHeader(http.StatusNoContent)
}

// AdminStats — GET /api/v1/admin/stats.
func (h *APIHandler) AdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Admin.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		TotalPapers:   stats.TotalPapers,
		TotalPYQs:     stats.TotalPYQs,
		RecentUploads: stats.RecentUploads,
		TotalVisits:   stats.TotalVisits,
	})
}
