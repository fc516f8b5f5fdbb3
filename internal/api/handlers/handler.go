// handler.go — основной обработчик API StudyVibe.
// Объединяет health, каталог, шлюз скачивания, чат и операции администратора.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/shivnayan54/studyvibe/internal/api/errors"
	"github.com/shivnayan54/studyvibe/internal/chatbot"
	"github.com/shivnayan54/studyvibe/internal/domain/gate"
	"github.com/shivnayan54/studyvibe/internal/domain/model"
	"github.com/shivnayan54/studyvibe/internal/service"
	"github.com/shivnayan54/studyvibe/internal/storage/blobstore"
)

// maxJSONBody — ограничение тела JSON-запроса.
const maxJSONBody = 1 << 20

// Services — зависимости APIHandler из сервисного слоя.
type Services struct {
	Browse    *service.BrowseService
	Gates     *service.GateService
	Admin     *service.AdminService
	Auth      *service.AuthService
	Visitors  *service.VisitorService
	Assistant *chatbot.Assistant
	Blobs     *blobstore.Store
	// MaxUploadBytes — ограничение размера PDF (тело multipart чуть больше)
	MaxUploadBytes int64
}

// APIHandler — обработчик HTTP API.
type APIHandler struct {
	health *HealthHandler
	svc    Services
	logger *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(health *HealthHandler, svc Services, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		health: health,
		svc:    svc,
		logger: logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON разбирает тело запроса. При ошибке пишет 400 и возвращает false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			apierrors.PayloadTooLarge(w, "Тело запроса слишком велико")
		case errors.Is(err, io.EOF):
			apierrors.ValidationError(w, "Пустое тело запроса")
		default:
			apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		}
		return false
	}
	return true
}

// collectionParam связывает path-параметр {collection}.
func collectionParam(w http.ResponseWriter, r *http.Request) (model.Collection, bool) {
	var raw string
	err := runtime.BindStyledParameterWithOptions("simple", "collection", chi.URLParam(r, "collection"), &raw,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		apierrors.ValidationError(w, "Некорректный параметр collection")
		return "", false
	}
	c, err := model.ParseCollection(raw)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return "", false
	}
	return c, true
}

// idParam связывает path-параметр {id} (UUID).
func idParam(w http.ResponseWriter, r *http.Request) (openapi_types.UUID, bool) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		apierrors.ValidationError(w, "Параметр id должен быть UUID")
		return id, false
	}
	return id, true
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		loadErr   *service.LoadError
		valErr    *service.ValidationError
		uploadErr *service.UploadError
		gateErr   *gate.TransitionError
	)

	switch {
	case errors.As(err, &loadErr):
		h.logger.Warn("Каталог недоступен",
			slog.String("collection", string(loadErr.Collection)),
			slog.String("error", loadErr.Err.Error()),
		)
		apierrors.ServiceUnavailable(w, "Каталог временно недоступен, попробуйте позже")
	case errors.As(err, &uploadErr):
		apierrors.WriteError(w, uploadErr.StatusCode, uploadErr.Code, uploadErr.Message)
	case errors.As(err, &gateErr):
		apierrors.Conflict(w, gateErr.Code, gateErr.Message)
	case errors.Is(err, service.ErrGateCancelled):
		apierrors.Conflict(w, "GATE_CANCELLED", "Скачивание отменено")
	case errors.As(err, &valErr):
		apierrors.InvalidField(w, valErr.Field, valErr.Message)
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Запись не найдена")
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, "", "Запись уже существует")
	case errors.Is(err, service.ErrInvalidCredentials):
		apierrors.Unauthorized(w, service.ErrInvalidCredentials.Error())
	case errors.Is(err, service.ErrAdminDisabled):
		apierrors.Forbidden(w, "Вход администратора не настроен")
	case r.Context().Err() != nil && errors.Is(err, r.Context().Err()):
		h.logger.Debug("Запрос отменён клиентом", slog.String("path", r.URL.Path))
	default:
		h.logger.Error("Внутренняя ошибка",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
