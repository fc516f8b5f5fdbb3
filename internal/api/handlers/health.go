// health.go — /health/live, /health/ready и /metrics.
package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shivnayan54/studyvibe/internal/config"
)

const (
	serviceName    = "studyvibe"
	statusOK       = "ok"
	statusFail     = "fail"
	statusDegraded = "degraded"
)

// ReadinessChecker — проверка одной зависимости: "ok", "degraded" или "fail".
type ReadinessChecker interface {
	CheckReady() (status, message string)
}

// CatalogReadiness — завершена ли инициализация хранилища каталога.
type CatalogReadiness interface {
	Ready() bool
}

// probe — именованная проверка. Сбой необязательной проверки
// понижается до degraded.
type probe struct {
	name     string
	required bool
	check    func() (status, message string)
}

// HealthHandler отвечает на пробы и отдаёт метрики.
type HealthHandler struct {
	probes      []probe
	promHandler http.Handler
}

// NewHealthHandler собирает пробы. pgChecker и catalog обязательны: если
// они nil, проба сообщает fail. jwksChecker nil — внешний IdP не настроен.
func NewHealthHandler(pgChecker, jwksChecker ReadinessChecker, catalog CatalogReadiness) *HealthHandler {
	probes := []probe{
		{name: "postgresql", required: true, check: checkerProbe(pgChecker)},
		{name: "catalog", required: true, check: catalogProbe(catalog)},
	}
	if jwksChecker != nil {
		probes = append(probes, probe{name: "jwks", check: jwksChecker.CheckReady})
	}
	return &HealthHandler{probes: probes, promHandler: promhttp.Handler()}
}

func checkerProbe(c ReadinessChecker) func() (string, string) {
	if c == nil {
		return func() (string, string) { return statusFail, "не инициализирован" }
	}
	return c.CheckReady
}

func catalogProbe(c CatalogReadiness) func() (string, string) {
	return func() (string, string) {
		switch {
		case c == nil:
			return statusFail, "не инициализирован"
		case c.Ready():
			return statusOK, ""
		default:
			return statusFail, "инициализация не завершена"
		}
	}
}

type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

type healthReadyResponse struct {
	healthLiveResponse
	Checks map[string]healthCheckResult `json:"checks"`
}

func liveResponse(status string) healthLiveResponse {
	return healthLiveResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}
}

// HealthLive — процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, liveResponse(statusOK))
}

// HealthReady — 200 при ok/degraded, 503 при fail.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	checks := make(map[string]healthCheckResult, len(h.probes))
	statuses := make([]string, 0, len(h.probes))
	for _, p := range h.probes {
		status, msg := p.check()
		if status == statusFail && !p.required {
			status = statusDegraded
		}
		checks[p.name] = healthCheckResult{Status: status, Message: msg}
		statuses = append(statuses, status)
	}

	resp := healthReadyResponse{healthLiveResponse: liveResponse(overallStatus(statuses...)), Checks: checks}
	code := http.StatusOK
	if resp.Status == statusFail {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// GetMetrics — Prometheus.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// overallStatus: любой fail даёт fail, иначе любой degraded даёт degraded.
func overallStatus(statuses ...string) string {
	result := statusOK
	for _, s := range statuses {
		switch s {
		case statusFail:
			return statusFail
		case statusDegraded:
			result = statusDegraded
		}
	}
	return result
}
