// gate.go — привязка шлюза скачивания к посетителям HTTP.
//
// Каждому посетителю (cookie visitor id) соответствует один шлюз. Сессии
// хранятся в expirable LRU: вытеснение или истечение TTL отменяет шлюз,
// действие при этом не вызывается. Действие шлюза публикует URL файла
// ожидающему подтверждения запросу и учитывает скачивание в метриках.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shivnayan54/studyvibe/internal/domain/gate"
	"github.com/shivnayan54/studyvibe/internal/domain/model"
)

// ErrGateCancelled — попытка скачивания отменена до вызова действия.
var ErrGateCancelled = errors.New("скачивание отменено")

// Prometheus-метрики шлюза.
var (
	gateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sv_gate_transitions_total",
		Help: "Количество переходов шлюза скачивания (по целевому состоянию).",
	}, []string{"to"})

	gateSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sv_gate_sessions",
		Help: "Количество активных сессий шлюза.",
	})

	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sv_downloads_total",
		Help: "Количество выданных ссылок на скачивание (по коллекции).",
	}, []string{"collection"})
)

// GateConfig — параметры шлюзов.
type GateConfig struct {
	// Duration — длительность отсчёта в секундах
	Duration int
	// CloseDelay — задержка перед вызовом действия после подтверждения
	CloseDelay time.Duration
	// SessionTTL — время жизни сессии посетителя
	SessionTTL time.Duration
	// MaxSessions — максимум одновременных сессий
	MaxSessions int
	// Clock — источник таймеров (nil — системные часы)
	Clock gate.Clock
}

// GateState — состояние шлюза посетителя.
type GateState struct {
	gate.Snapshot
	Collection model.Collection
	RecordID   uuid.UUID
	Title      string
}

// attempt — одна попытка скачивания.
type attempt struct {
	collection model.Collection
	record     model.Record
	delivered  chan struct{}
	aborted    chan struct{}
	abortOnce  sync.Once
}

func newAttempt(collection model.Collection, rec model.Record) *attempt {
	return &attempt{
		collection: collection,
		record:     rec,
		delivered:  make(chan struct{}),
		aborted:    make(chan struct{}),
	}
}

func (a *attempt) abort() {
	a.abortOnce.Do(func() { close(a.aborted) })
}

// gateSession — шлюз посетителя и текущая попытка.
type gateSession struct {
	mu      sync.Mutex
	gate    *gate.Gate
	current *attempt
}

// GateService — шлюзы скачивания посетителей.
type GateService struct {
	browse   *BrowseService
	cfg      GateConfig
	sessions *expirable.LRU[string, *gateSession]
	mu       sync.Mutex
	logger   *slog.Logger
}

// NewGateService создаёт сервис шлюзов.
func NewGateService(browse *BrowseService, cfg GateConfig, logger *slog.Logger) *GateService {
	if cfg.Clock == nil {
		cfg.Clock = gate.SystemClock{}
	}
	s := &GateService{
		browse: browse,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "gate_service")),
	}
	s.sessions = expirable.NewLRU[string, *gateSession](cfg.MaxSessions, s.onEvict, cfg.SessionTTL)
	return s
}

// onEvict отменяет шлюз вытесненной сессии.
func (s *GateService) onEvict(visitor string, sess *gateSession) {
	gateSessions.Dec()
	sess.mu.Lock()
	a := sess.current
	sess.current = nil
	_ = sess.gate.Cancel()
	sess.mu.Unlock()
	if a != nil {
		a.abort()
	}
	s.logger.Debug("Сессия шлюза вытеснена", slog.String("visitor", visitor))
}

// session возвращает сессию посетителя, создавая её при необходимости.
// Каждое обращение продлевает TTL сессии.
func (s *GateService) session(visitor string) *gateSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions.Get(visitor); ok {
		s.sessions.Add(visitor, sess)
		return sess
	}
	// Истёкшая, но ещё не вычищенная сессия отменяется через onEvict.
	s.sessions.Remove(visitor)

	sess := &gateSession{
		gate: gate.New(
			gate.WithDuration(s.cfg.Duration),
			gate.WithCloseDelay(s.cfg.CloseDelay),
			gate.WithClock(s.cfg.Clock),
			gate.WithObserver(func(t gate.Transition) {
				gateTransitionsTotal.WithLabelValues(string(t.To)).Inc()
			}),
		),
	}
	s.sessions.Add(visitor, sess)
	gateSessions.Inc()
	return sess
}

// lookup возвращает существующую сессию без создания и продлевает её TTL.
func (s *GateService) lookup(visitor string) (*gateSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions.Get(visitor)
	if ok {
		s.sessions.Add(visitor, sess)
	}
	return sess, ok
}

// Open запускает отсчёт для записи коллекции. Повторный Open заменяет
// предыдущую попытку посетителя.
func (s *GateService) Open(ctx context.Context, visitor string, collection model.Collection, id uuid.UUID) (*GateState, error) {
	rec, err := s.browse.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}

	sess := s.session(visitor)
	a := newAttempt(collection, *rec)

	sess.mu.Lock()
	err = sess.gate.Open(func() {
		downloadsTotal.WithLabelValues(string(collection)).Inc()
		close(a.delivered)
	})
	if err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	prev := sess.current
	sess.current = a
	state := stateOf(sess)
	sess.mu.Unlock()

	if prev != nil {
		prev.abort()
	}

	s.logger.Debug("Шлюз открыт",
		slog.String("visitor", visitor),
		slog.String("collection", string(collection)),
		slog.String("record_id", id.String()),
	)
	return state, nil
}

// State возвращает состояние шлюза посетителя (idle, если сессии нет).
func (s *GateService) State(visitor string) *GateState {
	sess, ok := s.lookup(visitor)
	if !ok {
		return &GateState{Snapshot: gate.Snapshot{State: gate.StateIdle}}
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return stateOf(sess)
}

// Confirm подтверждает скачивание и ждёт вызова действия шлюза.
// Возвращает URL файла; при отмене во время задержки — ErrGateCancelled.
func (s *GateService) Confirm(ctx context.Context, visitor string) (string, error) {
	sess, ok := s.lookup(visitor)
	if !ok {
		return "", &gate.TransitionError{Code: "GATE_NOT_READY", Message: "нет активной попытки скачивания"}
	}

	sess.mu.Lock()
	a := sess.current
	err := sess.gate.Confirm()
	sess.mu.Unlock()
	if err != nil {
		return "", err
	}

	select {
	case <-a.delivered:
		s.logger.Info("Скачивание подтверждено",
			slog.String("collection", string(a.collection)),
			slog.String("record_id", a.record.ID.String()),
		)
		return a.record.FileURL, nil
	case <-a.aborted:
		return "", ErrGateCancelled
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Cancel отменяет текущую попытку посетителя.
func (s *GateService) Cancel(visitor string) error {
	sess, ok := s.lookup(visitor)
	if !ok {
		return &gate.TransitionError{Code: "GATE_IDLE", Message: "нет активной попытки скачивания"}
	}

	sess.mu.Lock()
	err := sess.gate.Cancel()
	a := sess.current
	if err == nil {
		sess.current = nil
	}
	sess.mu.Unlock()
	if err != nil {
		return err
	}
	if a != nil {
		a.abort()
	}
	return nil
}

// stateOf — вызывается под sess.mu.
func stateOf(sess *gateSession) *GateState {
	st := &GateState{Snapshot: sess.gate.Snapshot()}
	if a := sess.current; a != nil && st.State != gate.StateIdle {
		st.Collection = a.collection
		st.RecordID = a.record.ID
		st.Title = a.record.Title
	}
	return st
}
