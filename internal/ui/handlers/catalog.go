// Пакет handlers — HTTP-обработчики публичных страниц StudyVibe.
package handlers

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/shivnayan54/studyvibe/internal/domain/catalog"
	"github.com/shivnayan54/studyvibe/internal/domain/model"
	"github.com/shivnayan54/studyvibe/internal/service"
	"github.com/shivnayan54/studyvibe/internal/ui/pages"
)

// VisitTracker — учёт посещений публичных страниц.
type VisitTracker interface {
	Track(ctx context.Context) (int64, error)
}

// CatalogHandler — страницы каталога: главная, работы, PYQ, шлюз скачивания.
type CatalogHandler struct {
	browse       *service.BrowseService
	visits       VisitTracker
	gateDuration int
	logger       *slog.Logger
}

// NewCatalogHandler создаёт обработчик страниц каталога.
func NewCatalogHandler(browse *service.BrowseService, visits VisitTracker, gateDuration int, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		browse:       browse,
		visits:       visits,
		gateDuration: gateDuration,
		logger:       logger.With(slog.String("component", "ui.catalog")),
	}
}

// HandleHome обрабатывает GET / — счётчики по советам.
func (h *CatalogHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	h.trackVisit(r)

	data := pages.HomeData{}
	summary, err := h.browse.Boards(r.Context(), model.CollectionPapers)
	if err != nil {
		h.logLoadError(r, err)
		data.Unavailable = true
	} else {
		data.Boards = summary
	}
	h.render(w, r, http.StatusOK, pages.Home(data))
}

// HandleBrowse обрабатывает GET /browse — работы с фильтрами и поиском.
func (h *CatalogHandler) HandleBrowse(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, model.CollectionPapers, false, pages.Browse)
}

// HandlePYQs обрабатывает GET /pyqs — PYQ, сгруппированные по предмету.
func (h *CatalogHandler) HandlePYQs(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, model.CollectionPYQs, true, pages.PYQs)
}

func (h *CatalogHandler) renderList(
	w http.ResponseWriter,
	r *http.Request,
	collection model.Collection,
	group bool,
	page func(pages.ListData) templ.Component,
) {
	h.trackVisit(r)

	query := parseQuery(r)
	query.Group = group
	data := pages.ListData{Collection: collection, Query: query}

	res, err := h.browse.List(r.Context(), collection, query)
	if err != nil {
		h.logLoadError(r, err)
		data.Unavailable = true
	} else {
		data.View = res.View
		data.Options = res.Options
	}
	h.render(w, r, http.StatusOK, page(data))
}

// HandleGate обрабатывает GET /gate/{collection}/{id} — страница отсчёта.
// Отсчёт запускает скрипт страницы через POST /api/v1/gate.
func (h *CatalogHandler) HandleGate(w http.ResponseWriter, r *http.Request) {
	data := pages.GateData{Duration: h.gateDuration}

	collection, err := model.ParseCollection(chi.URLParam(r, "collection"))
	if err != nil {
		data.NotFound = true
		h.render(w, r, http.StatusNotFound, pages.Gate(data))
		return
	}
	data.Collection = collection

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		data.NotFound = true
		h.render(w, r, http.StatusNotFound, pages.Gate(data))
		return
	}

	status := http.StatusOK
	rec, err := h.browse.Get(r.Context(), collection, id)
	switch {
	case err == nil:
		data.Record = rec
	case errors.Is(err, service.ErrNotFound):
		data.NotFound = true
		status = http.StatusNotFound
	default:
		h.logLoadError(r, err)
		data.Unavailable = true
	}
	h.render(w, r, status, pages.Gate(data))
}

// parseQuery читает фильтры, поиск и сортировку из query string.
// Некорректные значения игнорируются: страница показывает полный список.
func parseQuery(r *http.Request) catalog.Query {
	v := r.URL.Query()
	q := catalog.Query{
		Filter: catalog.FilterSpec{
			Board:   v.Get("board"),
			Class:   v.Get("class"),
			Subject: v.Get("subject"),
		},
		Search: v.Get("q"),
	}
	if year, err := strconv.Atoi(v.Get("year")); err == nil && year > 0 {
		q.Filter.Year = year
	}
	if sort, err := catalog.ParseSortMode(v.Get("sort")); err == nil {
		q.Sort = sort
	} else {
		q.Sort = catalog.SortRecent
	}
	return q
}

// trackVisit учитывает посещение; ошибка счётчика не мешает показу страницы.
func (h *CatalogHandler) trackVisit(r *http.Request) {
	if h.visits == nil {
		return
	}
	_, _ = h.visits.Track(r.Context())
}

func (h *CatalogHandler) logLoadError(r *http.Request, err error) {
	h.logger.Warn("Каталог недоступен, показано пустое состояние",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
}

// render отдаёт страницу только после успешного рендеринга в буфер.
func (h *CatalogHandler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	var buf bytes.Buffer
	if err := c.Render(r.Context(), &buf); err != nil {
		h.logger.Error("Ошибка рендеринга страницы",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Ошибка рендеринга страницы", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
