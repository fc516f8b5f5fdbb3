// Пакет openapi — встроенная OpenAPI-спецификация публичного API
// и middleware валидации запросов по ней (kin-openapi).
package openapi

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	apierrors "github.com/shivnayan54/studyvibe/internal/api/errors"
)

//go:embed openapi.yaml
var specYAML []byte

// Spec возвращает исходный YAML спецификации (для /api/v1/openapi.yaml).
func Spec() []byte {
	return specYAML
}

// Load разбирает и валидирует встроенную спецификацию.
func Load(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(specYAML)
	if err != nil {
		return nil, fmt.Errorf("разбор openapi.yaml: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("валидация openapi.yaml: %w", err)
	}
	return doc, nil
}

// Validator проверяет path- и query-параметры запросов по спецификации.
// Тела запросов проверяются обработчиками (multipart с файлом не поддерживается фильтром).
type Validator struct {
	router routers.Router
	logger *slog.Logger
}

var registerFormats sync.Once

// defineFormats регистрирует форматы строк, которые kin-openapi
// без регистрации не проверяет. Реестр глобальный.
func defineFormats() {
	registerFormats.Do(func() {
		openapi3.DefineStringFormatValidator("uuid",
			openapi3.NewRegexpFormatValidator(openapi3.FormatOfStringForUUIDOfRFC4122))
	})
}

// NewValidator создаёт валидатор по загруженной спецификации.
func NewValidator(doc *openapi3.T, logger *slog.Logger) (*Validator, error) {
	defineFormats()
	// Сервера не объявлены — маршруты совпадают с любым хостом.
	doc.Servers = nil
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("построение маршрутизатора OpenAPI: %w", err)
	}
	return &Validator{
		router: router,
		logger: logger.With(slog.String("component", "openapi_validator")),
	}, nil
}

// Middleware возвращает HTTP middleware валидации.
// Запросы к путям, отсутствующим в спецификации, пропускаются без проверки.
func (v *Validator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := v.router.FindRoute(r)
			if err != nil {
				if !errors.Is(err, routers.ErrPathNotFound) && !errors.Is(err, routers.ErrMethodNotAllowed) {
					v.logger.Debug("Маршрут OpenAPI не определён",
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
				}
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options: &openapi3filter.Options{
					ExcludeRequestBody: true,
					AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				},
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				apierrors.ValidationError(w, validationMessage(err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// validationMessage формирует краткое сообщение без дампа схемы.
func validationMessage(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) && reqErr.Parameter != nil {
		reason := reqErr.Reason
		var schemaErr *openapi3.SchemaError
		if errors.As(reqErr.Err, &schemaErr) {
			reason = schemaErr.Reason
		}
		if reason == "" {
			reason = "значение не соответствует схеме"
		}
		return fmt.Sprintf("Некорректный параметр %q: %s", reqErr.Parameter.Name, reason)
	}
	return "Некорректный запрос"
}
