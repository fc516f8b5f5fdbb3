// dephealth.go — мониторинг PostgreSQL через topologymetrics SDK.
// Метрики app_dependency_health и app_dependency_latency_seconds
// публикуются на /metrics рядом с метриками sv_*.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// catalogDependency — имя зависимости в метриках.
const catalogDependency = "catalog-db"

// DephealthConfig — параметры мониторинга зависимостей.
type DephealthConfig struct {
	ServiceID string
	Group     string
	// DB — *sql.DB поверх pgxpool (stdlib.OpenDBFromPool)
	DB *sql.DB
	// ConnURL — URL без пароля, только для лейблов метрик
	ConnURL  string
	Interval time.Duration
	// Registerer — nil означает глобальный реестр Prometheus
	Registerer prometheus.Registerer
}

func (c DephealthConfig) validate() error {
	switch {
	case c.ServiceID == "":
		return errors.New("dephealth: не задан идентификатор сервиса")
	case c.Group == "":
		return errors.New("dephealth: не задана группа")
	case c.DB == nil:
		return errors.New("dephealth: не задано подключение к БД")
	case c.Interval <= 0:
		return fmt.Errorf("dephealth: интервал проверки должен быть положительным, получено %s", c.Interval)
	}
	return nil
}

func (c DephealthConfig) options(logger *slog.Logger) []dephealth.Option {
	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		dephealth.AddDependency(catalogDependency, dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(c.DB)),
			dephealth.FromURL(c.ConnURL),
			dephealth.CheckInterval(c.Interval),
			dephealth.Critical(true),
		),
	}
	if c.Registerer != nil {
		opts = append(opts, dephealth.WithRegisterer(c.Registerer))
	}
	return opts
}

// DephealthService периодически проверяет БД каталога.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт монитор; проверки стартуют в Start.
func NewDephealthService(cfg DephealthConfig, logger *slog.Logger) (*DephealthService, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger = logger.With(slog.String("component", "dephealth"))

	dh, err := dephealth.New(cfg.ServiceID, cfg.Group, cfg.options(logger)...)
	if err != nil {
		return nil, fmt.Errorf("dephealth: %w", err)
	}
	return &DephealthService{dh: dh, logger: logger}, nil
}

func (ds *DephealthService) Start(ctx context.Context) error {
	if err := ds.dh.Start(ctx); err != nil {
		return err
	}
	ds.logger.Info("Мониторинг БД каталога запущен")
	return nil
}

func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг БД каталога остановлен")
}
