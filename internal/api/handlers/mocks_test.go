package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/shivnayan54/studyvibe/internal/chatbot"
	"github.com/shivnayan54/studyvibe/internal/domain/gate/gatetest"
	"github.com/shivnayan54/studyvibe/internal/domain/model"
	"github.com/shivnayan54/studyvibe/internal/repository"
	"github.com/shivnayan54/studyvibe/internal/service"
	"github.com/shivnayan54/studyvibe/internal/storage/blobstore"
)

const (
	testAdminEmail    = "admin@studyvibe.test"
	testAdminPassword = "s3cret"
	testBaseURL       = "http://sv.test"
	testGateDuration  = 8
	testCloseDelay    = 300 * time.Millisecond
)

// --- Mock repositories ---

// memRecordRepo — RecordRepository в памяти. err возвращается всеми методами.
type memRecordRepo struct {
	mu   sync.Mutex
	data map[model.Collection][]model.Record
	err  error
}

func newMemRecordRepo(records map[model.Collection][]model.Record) *memRecordRepo {
	if records == nil {
		records = map[model.Collection][]model.Record{}
	}
	return &memRecordRepo{data: records}
}

func (m *memRecordRepo) ListAll(_ context.Context, c model.Collection) ([]model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := slices.Clone(m.data[c])
	slices.SortStableFunc(out, func(a, b model.Record) int { return b.UploadDate.Compare(a.UploadDate) })
	return out, nil
}

func (m *memRecordRepo) Create(_ context.Context, c model.Collection, rec *model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.UploadDate.IsZero() {
		rec.UploadDate = time.Now().UTC()
	}
	m.data[c] = append(m.data[c], *rec)
	return nil
}

func (m *memRecordRepo) Update(_ context.Context, c model.Collection, id uuid.UUID, meta model.Metadata) (*model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for i, r := range m.data[c] {
		if r.ID == id {
			r.Board, r.Class, r.Year, r.Subject, r.Title = meta.Board, meta.Class, meta.Year, meta.Subject, meta.Title
			m.data[c][i] = r
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memRecordRepo) Delete(_ context.Context, c model.Collection, id uuid.UUID) (*model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for i, r := range m.data[c] {
		if r.ID == id {
			m.data[c] = slices.Delete(m.data[c], i, i+1)
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memRecordRepo) Count(_ context.Context, c model.Collection) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data[c]), m.err
}

func (m *memRecordRepo) CountSince(_ context.Context, c model.Collection, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.data[c] {
		if r.UploadDate.After(since) {
			n++
		}
	}
	return n, m.err
}

// mockVisitorRepo — мок VisitorRepository.
type mockVisitorRepo struct {
	mu    sync.Mutex
	total int64
}

func (m *mockVisitorRepo) Increment(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	return m.total, nil
}

func (m *mockVisitorRepo) Total(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total, nil
}

// stubChecker — ReadinessChecker с фиксированным ответом.
type stubChecker struct {
	status  string
	message string
}

func (s stubChecker) CheckReady() (string, string) {
	return s.status, s.message
}

// --- Fixture ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	repo   *memRecordRepo
	store  *service.CatalogStore
	clock  *gatetest.ManualClock
	blobs  *blobstore.Store
	api    *APIHandler
	router http.Handler
}

// newFixture собирает обработчик на реальных сервисах поверх репозитория в памяти.
func newFixture(t *testing.T, records map[model.Collection][]model.Record) *fixture {
	t.Helper()
	logger := testLogger()

	repo := newMemRecordRepo(records)
	visitors := &mockVisitorRepo{}
	signal := service.NewInitSignal()
	signal.Complete()
	store := service.NewCatalogStore(repo, service.NewSnapshotCache(time.Minute), signal, logger)

	blobs, err := blobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("blobstore.New: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	clock := gatetest.NewManualClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	browse := service.NewBrowseService(store, []string{"CBSE", "ICSE"}, logger)
	svc := Services{
		Browse: browse,
		Gates: service.NewGateService(browse, service.GateConfig{
			Duration:    testGateDuration,
			CloseDelay:  testCloseDelay,
			SessionTTL:  time.Hour,
			MaxSessions: 100,
			Clock:       clock,
		}, logger),
		Admin: service.NewAdminService(repo, visitors, blobs, store, service.AdminConfig{
			PublicBaseURL:  testBaseURL,
			MaxUploadBytes: 1 << 10,
		}, logger),
		Auth: service.NewAuthService(service.AuthConfig{
			AdminEmail:        testAdminEmail,
			AdminPasswordHash: string(hash),
			JWTSecret:         []byte("test-secret"),
			TTL:               time.Hour,
		}, logger),
		Visitors:       service.NewVisitorService(visitors, logger),
		Assistant:      chatbot.NewAssistant(nil, 0, logger),
		Blobs:          blobs,
		MaxUploadBytes: 1 << 10,
	}

	health := NewHealthHandler(stubChecker{status: "ok"}, nil, store)
	api := NewAPIHandler(health, svc, logger)

	return &fixture{
		repo:   repo,
		store:  store,
		clock:  clock,
		blobs:  blobs,
		api:    api,
		router: testRouter(api),
	}
}

// testRouter повторяет маршруты /api/v1 без аутентификации и валидации OpenAPI.
func testRouter(api *APIHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/health/live", api.HealthLive)
	r.Get("/health/ready", api.HealthReady)
	r.Get("/files/*", api.ServeFile)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", api.Search)
		r.Get("/search/suggestions", api.Suggestions)
		r.Get("/boards", api.Boards)
		r.Post("/visits", api.TrackVisit)
		r.Get("/gate", api.GateState)
		r.Post("/gate", api.OpenGate)
		r.Post("/gate/confirm", api.ConfirmGate)
		r.Post("/gate/cancel", api.CancelGate)
		r.Post("/chat", api.Chat)
		r.Post("/auth/login", api.Login)
		r.Get("/admin/stats", api.AdminStats)
		r.Post("/admin/{collection}", api.CreateRecord)
		r.Patch("/admin/{collection}/{id}", api.UpdateRecord)
		r.Delete("/admin/{collection}/{id}", api.DeleteRecord)
		r.Get("/{collection}", api.ListRecords)
		r.Get("/{collection}/options", api.FilterOptions)
		r.Get("/{collection}/{id}", api.GetRecord)
	})
	return r
}

// do выполняет запрос к роутеру фикстуры.
func (f *fixture) do(t *testing.T, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// decode разбирает JSON-ответ.
func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("разбор ответа %q: %v", rec.Body.String(), err)
	}
	return v
}

// errorCode возвращает error.code из тела ответа.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}](t, rec)
	return body.Error.Code
}

func record(board, class string, year int, subject string) model.Record {
	return model.Record{
		ID:         uuid.New(),
		Board:      board,
		Class:      class,
		Year:       year,
		Subject:    subject,
		Title:      board + " " + subject + " " + class,
		FileURL:    "https://drive.google.com/uc?export=download&id=" + board + subject,
		UploadDate: time.Date(year, 3, 1, 0, 0, 0, 0, time.UTC),
		Source:     model.SourceGDrive,
	}
}
