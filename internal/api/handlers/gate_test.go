package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shivnayan54/studyvibe/internal/domain/gate"
	"github.com/shivnayan54/studyvibe/internal/domain/model"
)

// visitorCookie возвращает cookie посетителя, выданную в ответе.
func visitorCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == VisitorCookie {
			return c
		}
	}
	t.Fatalf("cookie %s не выдана", VisitorCookie)
	return nil
}

// waitGateState ждёт, пока шлюз посетителя перейдёт в состояние want.
func waitGateState(t *testing.T, f *fixture, cookie *http.Cookie, want gate.State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		st := decode[gateResponse](t, f.do(t, http.MethodGet, "/api/v1/gate", "", cookie))
		if st.State == string(want) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("шлюз не перешёл в %s", want)
}

func TestGate_FullCycle(t *testing.T) {
	paper := record("CBSE", "10", 2024, "Mathematics")
	f := newFixture(t, map[model.Collection][]model.Record{model.CollectionPapers: {paper}})

	// Первый запрос выдаёт cookie и показывает idle
	rec := f.do(t, http.MethodGet, "/api/v1/gate", "")
	cookie := visitorCookie(t, rec)
	if st := decode[gateResponse](t, rec); st.State != string(gate.StateIdle) || st.ID != nil {
		t.Fatalf("начальное состояние = %+v", st)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/gate", `{"collection":"papers","id":"`+paper.ID.String()+`"}`, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("open: статус = %d, тело: %s", rec.Code, rec.Body.String())
	}
	st := decode[gateResponse](t, rec)
	if st.State != string(gate.StateShowing) || st.Remaining != testGateDuration || st.Title != paper.Title {
		t.Fatalf("после open = %+v", st)
	}
	if st.ID == nil || *st.ID != paper.ID {
		t.Fatalf("id = %v", st.ID)
	}

	// Подтверждение до окончания отсчёта — конфликт
	rec = f.do(t, http.MethodPost, "/api/v1/gate/confirm", "", cookie)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "GATE_NOT_READY" {
		t.Fatalf("ранний confirm: %d %s", rec.Code, rec.Body.String())
	}

	f.clock.Advance(testGateDuration * time.Second)
	waitGateState(t, f, cookie, gate.StateReady)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- f.do(t, http.MethodPost, "/api/v1/gate/confirm", "", cookie)
	}()
	waitGateState(t, f, cookie, gate.StateClosed)
	f.clock.Advance(testCloseDelay)

	rec = <-done
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: статус = %d, тело: %s", rec.Code, rec.Body.String())
	}
	if url := decode[map[string]string](t, rec)["download_url"]; url != paper.FileURL {
		t.Errorf("download_url = %q, ожидался %q", url, paper.FileURL)
	}
	waitGateState(t, f, cookie, gate.StateIdle)
}

func TestGate_CancelDuringCountdown(t *testing.T) {
	paper := record("ICSE", "12", 2023, "Physics")
	f := newFixture(t, map[model.Collection][]model.Record{model.CollectionPapers: {paper}})

	rec := f.do(t, http.MethodPost, "/api/v1/gate", `{"collection":"papers","id":"`+paper.ID.String()+`"}`)
	cookie := visitorCookie(t, rec)

	f.clock.Advance(3 * time.Second)
	if st := decode[gateResponse](t, f.do(t, http.MethodGet, "/api/v1/gate", "", cookie)); st.Remaining != testGateDuration-3 {
		t.Errorf("remaining = %d", st.Remaining)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/gate/cancel", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: статус = %d, тело: %s", rec.Code, rec.Body.String())
	}

	// Отсчёт не продолжается после отмены
	f.clock.Advance(testGateDuration * time.Second)
	st := decode[gateResponse](t, f.do(t, http.MethodGet, "/api/v1/gate", "", cookie))
	if st.State == string(gate.StateReady) {
		t.Errorf("после отмены шлюз не должен стать ready: %+v", st)
	}
}

func TestGate_OpenInvalid(t *testing.T) {
	paper := record("CBSE", "10", 2024, "Mathematics")
	f := newFixture(t, map[model.Collection][]model.Record{model.CollectionPapers: {paper}})

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "неизвестная коллекция", body: `{"collection":"notes","id":"` + paper.ID.String() + `"}`, want: http.StatusBadRequest},
		{name: "без id", body: `{"collection":"papers"}`, want: http.StatusBadRequest},
		{name: "id не uuid", body: `{"collection":"papers","id":"42"}`, want: http.StatusBadRequest},
		{name: "запись не найдена", body: `{"collection":"pyqs","id":"` + paper.ID.String() + `"}`, want: http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if rec := f.do(t, http.MethodPost, "/api/v1/gate", tc.body); rec.Code != tc.want {
				t.Errorf("статус = %d, ожидался %d (тело: %s)", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestGate_ConfirmWithoutSession(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/gate/confirm", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("статус = %d, ожидался 409", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/v1/gate/cancel", ""); rec.Code != http.StatusConflict {
		t.Errorf("cancel без сессии: статус = %d, ожидался 409", rec.Code)
	}
}

func TestVisitorID_ReusesValidCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: VisitorCookie, Value: "0b6f8f5e-6a57-4c1e-9f5e-3f0f9f4e2a11"})
	if id := VisitorID(rec, req); id != "0b6f8f5e-6a57-4c1e-9f5e-3f0f9f4e2a11" {
		t.Errorf("id = %s", id)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("cookie не должна перевыдаваться")
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: VisitorCookie, Value: "forged"})
	if id := VisitorID(rec, req); id == "forged" {
		t.Error("некорректная cookie должна заменяться")
	}
}
